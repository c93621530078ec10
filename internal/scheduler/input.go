package scheduler

import (
	"fmt"
	"time"

	"github.com/roach88/fincollect/internal/model"
)

// Input is one event fed to the scheduler. Every input carries the time it
// was observed; the scheduler adopts it as its current time.
type Input interface {
	At() time.Time
	fmt.Stringer
}

// Timeout is a periodic tick from the driver.
type Timeout struct {
	Now time.Time
}

// PauseService pauses (Pause=true) or resumes the collector.
type PauseService struct {
	Now   time.Time
	Pause bool
}

// IgnoreRawReport asks for a duplicate report conflict to be resolved.
// The scheduler only forwards it as an intent.
type IgnoreRawReport struct {
	Now     time.Time
	Request model.IgnoreRequest
}

// SetPriorityCompanies replaces the priority queue.
type SetPriorityCompanies struct {
	Now     time.Time
	Symbols []string
}

// GetPriorityCompanies reads the priority queue.
type GetPriorityCompanies struct {
	Now time.Time
}

func (i Timeout) At() time.Time              { return i.Now }
func (i PauseService) At() time.Time         { return i.Now }
func (i IgnoreRawReport) At() time.Time      { return i.Now }
func (i SetPriorityCompanies) At() time.Time { return i.Now }
func (i GetPriorityCompanies) At() time.Time { return i.Now }

func (i Timeout) String() string {
	return fmt.Sprintf("Timeout(%s)", formatTime(i.Now))
}

func (i PauseService) String() string {
	return fmt.Sprintf("PauseService(pause=%t at %s)", i.Pause, formatTime(i.Now))
}

func (i IgnoreRawReport) String() string {
	return fmt.Sprintf("IgnoreRawReport(instrument=%d keep=%d ignore=%v at %s)",
		i.Request.InstrumentID, i.Request.KeepID, i.Request.IgnoreIDs, formatTime(i.Now))
}

func (i SetPriorityCompanies) String() string {
	return fmt.Sprintf("SetPriorityCompanies(%v at %s)", i.Symbols, formatTime(i.Now))
}

func (i GetPriorityCompanies) String() string {
	return fmt.Sprintf("GetPriorityCompanies(at %s)", formatTime(i.Now))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

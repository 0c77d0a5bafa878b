package catalog

type Level int

const (
	LevelSuccess Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	default:
		return "error"
	}
}

type Notice struct {
	Level  Level
	Title  string
	Detail string
}

// View presents the controller's outcomes.
type View interface {
	Notify(Notice)
	// ResetForm clears the create inputs and closes whatever dialog held them.
	ResetForm()
}

type nopView struct{}

func (nopView) Notify(Notice) {}
func (nopView) ResetForm()    {}

package employeestate

// Type is an enumeration for employee payday states.
type Type int

// Various employee states.
const (
	_ Type = iota

	// Eligible stands for employees whose pay period has elapsed, so
	// payday can be claimed.
	Eligible

	// Ineligible stands for employees in the cooldown after the latest
	// payday.
	Ineligible
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Eligible:
		return "eligible"
	case Ineligible:
		return "ineligible"
	default:
		return "unknown"
	}
}

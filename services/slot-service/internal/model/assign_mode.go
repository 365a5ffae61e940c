package model

import "fmt"

// AssignMode selects how a staff member is chosen for a slot when the caller
// does not pin one. It is a closed set; anything else is a configuration
// error at parse time.
type AssignMode int

const (
	AssignRoundRobin AssignMode = iota
	AssignLoadBalanced
	AssignManual
	AssignCustomerChoice
	AssignRandom
)

var assignModeNames = map[AssignMode]string{
	AssignRoundRobin:     "round_robin",
	AssignLoadBalanced:   "load_balanced",
	AssignManual:         "manual",
	AssignCustomerChoice: "customer_choice",
	AssignRandom:         "random",
}

func (m AssignMode) String() string {
	if name, ok := assignModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("assign_mode(%d)", int(m))
}

// ParseAssignMode maps the stored mode name to its enum value.
func ParseAssignMode(s string) (AssignMode, error) {
	for mode, name := range assignModeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown assignment mode %q", s)
}

// Package safety decides whether a shell command string may be executed by
// the shell tool. The decision is pure: an allow-list of read-only commands
// matched on the first token, overridden by a block-list of forbidden
// substrings.
package safety

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRejected is matched by every *RejectionError.
var ErrRejected = errors.New("safety: command rejected")

// RejectionError explains why a command was refused.
type RejectionError struct {
	Command string
	Reason  string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("safety: command rejected: %s", e.Reason)
}

// Is reports whether target is ErrRejected.
func (e *RejectionError) Is(target error) bool { return target == ErrRejected }

// Policy is the configurable allow/block rule set.
type Policy struct {
	// Allowed holds command names that may appear as the first token.
	Allowed []string `yaml:"allowed"`
	// Blocked holds substrings that reject a command wherever they appear.
	Blocked []string `yaml:"blocked"`
}

// DefaultPolicy returns the read-only command policy.
func DefaultPolicy() Policy {
	return Policy{
		Allowed: []string{"ls", "pwd", "echo", "cat", "date", "whoami", "uname"},
		Blocked: []string{
			"rm", "sudo", "su", ">", ">>", "|", "mv", "cp", "chmod", "chown", "&",
			";", "`", "$(", "<", "\n",
		},
	}
}

// Validator applies a Policy. It holds no mutable state and is safe for
// concurrent use.
type Validator struct {
	allowed map[string]struct{}
	blocked []string
}

// New creates a Validator for p. Empty entries are ignored.
func New(p Policy) *Validator {
	v := &Validator{allowed: make(map[string]struct{}, len(p.Allowed))}

	for _, a := range p.Allowed {
		if a = strings.TrimSpace(a); a != "" {
			v.allowed[a] = struct{}{}
		}
	}

	for _, b := range p.Blocked {
		if b != "" {
			v.blocked = append(v.blocked, b)
		}
	}

	return v
}

// Default creates a Validator for DefaultPolicy.
func Default() *Validator { return New(DefaultPolicy()) }

// Check returns nil if command may run, or a *RejectionError naming the rule
// that refused it.
func (v *Validator) Check(command string) error {
	if strings.TrimSpace(command) == "" {
		return &RejectionError{Command: command, Reason: "empty command"}
	}

	for _, b := range v.blocked {
		if strings.Contains(command, b) {
			return &RejectionError{Command: command, Reason: fmt.Sprintf("contains blocked pattern %q", b)}
		}
	}

	return v.checkName(command, strings.Fields(command)[0])
}

// IsSafe reports whether Check accepts command.
func (v *Validator) IsSafe(command string) bool {
	return v.Check(command) == nil
}

// CheckArgv applies the same rules to an already split command line.
func (v *Validator) CheckArgv(argv []string) error {
	command := strings.Join(argv, " ")
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return &RejectionError{Command: command, Reason: "empty command"}
	}

	for _, arg := range argv {
		for _, b := range v.blocked {
			if strings.Contains(arg, b) {
				return &RejectionError{Command: command, Reason: fmt.Sprintf("contains blocked pattern %q", b)}
			}
		}
	}

	return v.checkName(command, argv[0])
}

func (v *Validator) checkName(command, name string) error {
	if _, ok := v.allowed[name]; !ok {
		return &RejectionError{Command: command, Reason: fmt.Sprintf("command %q is not in the allow-list", name)}
	}
	return nil
}

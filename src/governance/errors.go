package governance

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrCannotRemoveAdmin   = errors.New("cannot remove admin")
	ErrAlreadyMember       = errors.New("already a member")
	ErrNotAMember          = errors.New("not a member")
	ErrAlreadyVoted        = errors.New("already voted")
	ErrAlreadyExecuted     = errors.New("proposal already executed")
	ErrVotingEnded         = errors.New("voting period ended")
	ErrNotPassed           = errors.New("proposal did not pass")
	ErrInvalidVotingPeriod = errors.New("invalid voting period")
	ErrInvalidProposalType = errors.New("invalid proposal type")
	ErrProposalNotFound    = errors.New("proposal not found")
	ErrCorruptState        = errors.New("corrupt governance state")
)

// Kind groups engine failures for callers that translate them.
type Kind string

const (
	KindUnknown       Kind = ""
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindTemporal      Kind = "temporal"
	KindValidation    Kind = "validation"
)

var kinds = map[error]Kind{
	ErrUnauthorized:        KindAuthorization,
	ErrCannotRemoveAdmin:   KindAuthorization,
	ErrAlreadyMember:       KindConflict,
	ErrNotAMember:          KindConflict,
	ErrAlreadyVoted:        KindConflict,
	ErrAlreadyExecuted:     KindConflict,
	ErrVotingEnded:         KindTemporal,
	ErrNotPassed:           KindTemporal,
	ErrInvalidVotingPeriod: KindValidation,
	ErrInvalidProposalType: KindValidation,
	ErrProposalNotFound:    KindValidation,
}

// KindOf reports the category of a (possibly wrapped) engine error.
func KindOf(err error) Kind {
	for sentinel, k := range kinds {
		if errors.Is(err, sentinel) {
			return k
		}
	}
	return KindUnknown
}

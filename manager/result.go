package manager

import (
	"github.com/go-errors/errors"
)

var (
	// ErrRegistration means the saved network could neither be registered
	// nor found.
	ErrRegistration = errors.New("could not register network")
	// ErrEnableRejected means the platform refused to activate the network.
	ErrEnableRejected = errors.New("enable rejected")
	// ErrAuthentication means the peer rejected the credentials.
	ErrAuthentication = errors.New("password error")
	// ErrConnectInProgress rejects a connection attempt while another one
	// is pending, under the reject supersede policy.
	ErrConnectInProgress = errors.New("connection attempt already in progress")
	// ErrSubscription means the events a connection attempt resolves on
	// could not be listened to.
	ErrSubscription = errors.New("could not listen for network events")
	// ErrBind means the process could not be bound to the joined network.
	ErrBind = errors.New("could not bind to network")
)

// Result is the terminal outcome of a connection attempt.
type Result struct {
	Connected     bool
	PasswordError bool
	Reason        string
	Err           error
}

// Sink receives the outcome of a connection attempt.
type Sink func(result Result)

func connected() Result {
	return Result{Connected: true}
}

func failed(passwordError bool, err error) Result {
	return Result{
		PasswordError: passwordError,
		Reason:        err.Error(),
		Err:           err,
	}
}

package services

import "github.com/solarscope/backend/internal/utils"

// Owner is the caller a record is anchored to: a logged-in user or, failing
// that, the anonymous browser session.
type Owner struct {
	UserID    *int64
	Username  string
	SessionID string
}

// anchors returns the owner columns for a new record. A user wins over a session.
func (o Owner) anchors() (*int64, *string) {
	if o.UserID != nil {
		return o.UserID, nil
	}
	if o.SessionID == "" {
		return nil, nil
	}
	sid := o.SessionID
	return nil, &sid
}

func (o Owner) displayName() string {
	if o.UserID != nil && o.Username != "" {
		return o.Username
	}
	return "Anonymous"
}

// storeErr keeps caller errors (conflict, invalid input) intact so their HTTP
// status survives, and wraps everything else as internal.
func storeErr(op, msg string, err error) error {
	if utils.IsCallerError(err) {
		return err
	}
	return utils.E(utils.CodeInternal, op, msg, err)
}

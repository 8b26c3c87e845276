package notifications

import "errors"

var (
	ErrAlreadySent = errors.New("notification already sent")
	ErrInProgress  = errors.New("notification delivery in progress")
)

const KindAccessGranted = "inventory.access_granted"

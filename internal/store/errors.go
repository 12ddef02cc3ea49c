package store

import "errors"

// Error kinds from spec §7 that originate at the storage layer.
var (
	ErrNodeIoFailed  = errors.New("store: node io failed")
	ErrNotFound      = errors.New("store: node not found")
	ErrWrongKind     = errors.New("store: node kind mismatch")
	ErrStorageFull   = errors.New("store: insufficient free slots")
	ErrPermission    = errors.New("store: address does not belong to caller")
)

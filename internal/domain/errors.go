package domain

import "errors"

// ErrNotFound indicates the requested record or node does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidTree indicates a content tree that breaks its structural rules
var ErrInvalidTree = errors.New("invalid content tree")

// ErrShuttingDown indicates the queue no longer accepts work
var ErrShuttingDown = errors.New("shutting down")

// ErrWifiRequired indicates a download was refused by the Wi-Fi only preference
var ErrWifiRequired = errors.New("wifi required")

// ErrOffline indicates there is no network connection at all
var ErrOffline = errors.New("no network connection")

// ErrInsufficientStorage indicates the target disk cannot hold a download
var ErrInsufficientStorage = errors.New("insufficient storage")

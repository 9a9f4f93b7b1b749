package errors

var (
	ErrUnknown                  = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument          = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrThresholdExceeded        = New(ERR_THRESHOLD_EXCEEDED, "threshold exceeded")
	ErrNotFound                 = New(ERR_NOT_FOUND, "not found")
	ErrProcessing               = New(ERR_PROCESSING, "error processing")
	ErrConfiguration            = New(ERR_CONFIGURATION, "configuration error")
	ErrContext                  = New(ERR_CONTEXT, "context error")
	ErrContextCanceled          = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrError                    = New(ERR_ERROR, "generic error")
	ErrBlockNotFound            = New(ERR_BLOCK_NOT_FOUND, "block not found")
	ErrBlockInvalid             = New(ERR_BLOCK_INVALID, "block invalid")
	ErrBlockExists              = New(ERR_BLOCK_EXISTS, "block exists")
	ErrBlockError               = New(ERR_BLOCK_ERROR, "block error")
	ErrTxNotFound               = New(ERR_TX_NOT_FOUND, "tx not found")
	ErrTxInvalid                = New(ERR_TX_INVALID, "tx invalid")
	ErrTxAlreadyExists          = New(ERR_TX_ALREADY_EXISTS, "tx already exists")
	ErrTxError                  = New(ERR_TX_ERROR, "tx error")
	ErrServiceUnavailable       = New(ERR_SERVICE_UNAVAILABLE, "service unavailable")
	ErrServiceNotStarted        = New(ERR_SERVICE_NOT_STARTED, "service not started")
	ErrServiceError             = New(ERR_SERVICE_ERROR, "service error")
	ErrStorageUnavailable       = New(ERR_STORAGE_UNAVAILABLE, "storage unavailable")
	ErrStorageError             = New(ERR_STORAGE_ERROR, "storage error")
	ErrStateError               = New(ERR_STATE_ERROR, "state error")
	ErrNetworkError             = New(ERR_NETWORK_ERROR, "network error")
	ErrNetworkTimeout           = New(ERR_NETWORK_TIMEOUT, "network timeout")
	ErrNetworkConnectionRefused = New(ERR_NETWORK_CONNECTION_REFUSED, "connection refused")
	ErrNetworkDisconnected      = New(ERR_NETWORK_DISCONNECTED, "disconnected")
	ErrWireFormat               = New(ERR_WIRE_FORMAT, "malformed message")
	ErrWireChecksum             = New(ERR_WIRE_CHECKSUM, "checksum mismatch")
	ErrProtocolViolation        = New(ERR_PROTOCOL_VIOLATION, "protocol violation")
	ErrCheckpointMismatch       = New(ERR_CHECKPOINT_MISMATCH, "checkpoint mismatch")
	ErrSelfConnection           = New(ERR_SELF_CONNECTION, "connected to self")
	ErrRequestPending           = New(ERR_REQUEST_PENDING, "request already pending")
	ErrJobAbandoned             = New(ERR_JOB_ABANDONED, "job abandoned")
	ErrUnsupportedServices      = New(ERR_UNSUPPORTED_SERVICES, "unsupported services")
	ErrNetworkInvalidResult     = New(ERR_NETWORK_INVALID_RESPONSE, "invalid response")
)

// errors initialization functions

func NewUnknownError(message string, params ...interface{}) error {
	return New(ERR_UNKNOWN, message, params...)
}
func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewThresholdExceededError(message string, params ...interface{}) error {
	return New(ERR_THRESHOLD_EXCEEDED, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewError(message string, params ...interface{}) error {
	return New(ERR_ERROR, message, params...)
}
func NewBlockNotFoundError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_NOT_FOUND, message, params...)
}
func NewBlockInvalidError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_INVALID, message, params...)
}
func NewBlockExistsError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_EXISTS, message, params...)
}
func NewBlockError(message string, params ...interface{}) error {
	return New(ERR_BLOCK_ERROR, message, params...)
}
func NewTxNotFoundError(message string, params ...interface{}) error {
	return New(ERR_TX_NOT_FOUND, message, params...)
}
func NewTxInvalidError(message string, params ...interface{}) error {
	return New(ERR_TX_INVALID, message, params...)
}
func NewTxAlreadyExistsError(message string, params ...interface{}) error {
	return New(ERR_TX_ALREADY_EXISTS, message, params...)
}
func NewTxError(message string, params ...interface{}) error {
	return New(ERR_TX_ERROR, message, params...)
}
func NewServiceUnavailableError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_UNAVAILABLE, message, params...)
}
func NewServiceNotStartedError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_NOT_STARTED, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewStorageUnavailableError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_UNAVAILABLE, message, params...)
}
func NewStorageError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
func NewStateError(message string, params ...interface{}) error {
	return New(ERR_STATE_ERROR, message, params...)
}
func NewNetworkError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_ERROR, message, params...)
}
func NewNetworkTimeoutError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_TIMEOUT, message, params...)
}
func NewNetworkDisconnectedError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_DISCONNECTED, message, params...)
}
func NewWireFormatError(message string, params ...interface{}) error {
	return New(ERR_WIRE_FORMAT, message, params...)
}
func NewWireChecksumError(message string, params ...interface{}) error {
	return New(ERR_WIRE_CHECKSUM, message, params...)
}
func NewProtocolViolationError(message string, params ...interface{}) error {
	return New(ERR_PROTOCOL_VIOLATION, message, params...)
}
func NewCheckpointMismatchError(message string, params ...interface{}) error {
	return New(ERR_CHECKPOINT_MISMATCH, message, params...)
}
func NewSelfConnectionError(message string, params ...interface{}) error {
	return New(ERR_SELF_CONNECTION, message, params...)
}
func NewRequestPendingError(message string, params ...interface{}) error {
	return New(ERR_REQUEST_PENDING, message, params...)
}
func NewJobAbandonedError(message string, params ...interface{}) error {
	return New(ERR_JOB_ABANDONED, message, params...)
}
func NewUnsupportedServicesError(message string, params ...interface{}) error {
	return New(ERR_UNSUPPORTED_SERVICES, message, params...)
}
func NewNetworkConnectionRefusedError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_CONNECTION_REFUSED, message, params...)
}
func NewNetworkInvalidResponseError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_INVALID_RESPONSE, message, params...)
}
func NewNetworkPeerMaliciousError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_PEER_MALICIOUS, message, params...)
}

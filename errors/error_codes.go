package errors

// ERR is the numeric error code carried by every *Error.
// Codes are grouped in ranges of ten so Category can bucket them.
type ERR int32

const (
	ERR_UNKNOWN            ERR = 0
	ERR_INVALID_ARGUMENT   ERR = 1
	ERR_THRESHOLD_EXCEEDED ERR = 2
	ERR_NOT_FOUND          ERR = 3
	ERR_PROCESSING         ERR = 4
	ERR_CONFIGURATION      ERR = 5
	ERR_CONTEXT            ERR = 6
	ERR_CONTEXT_CANCELED   ERR = 7
	ERR_ERROR              ERR = 9

	ERR_BLOCK_NOT_FOUND ERR = 10
	ERR_BLOCK_INVALID   ERR = 11
	ERR_BLOCK_EXISTS    ERR = 12
	ERR_BLOCK_ERROR     ERR = 13

	ERR_TX_NOT_FOUND      ERR = 30
	ERR_TX_INVALID        ERR = 31
	ERR_TX_ALREADY_EXISTS ERR = 32
	ERR_TX_ERROR          ERR = 33

	ERR_SERVICE_UNAVAILABLE ERR = 50
	ERR_SERVICE_NOT_STARTED ERR = 51
	ERR_SERVICE_ERROR       ERR = 52

	ERR_STORAGE_UNAVAILABLE ERR = 60
	ERR_STORAGE_ERROR       ERR = 61

	ERR_STATE_INITIALIZATION ERR = 100
	ERR_STATE_ERROR          ERR = 101

	ERR_NETWORK_ERROR              ERR = 110
	ERR_NETWORK_TIMEOUT            ERR = 111
	ERR_NETWORK_CONNECTION_REFUSED ERR = 112
	ERR_NETWORK_INVALID_RESPONSE   ERR = 113
	ERR_NETWORK_PEER_MALICIOUS     ERR = 114
	ERR_NETWORK_DISCONNECTED       ERR = 115

	ERR_WIRE_FORMAT          ERR = 120
	ERR_WIRE_CHECKSUM        ERR = 121
	ERR_PROTOCOL_VIOLATION   ERR = 122
	ERR_CHECKPOINT_MISMATCH  ERR = 123
	ERR_SELF_CONNECTION      ERR = 124
	ERR_REQUEST_PENDING      ERR = 125
	ERR_JOB_ABANDONED        ERR = 126
	ERR_UNSUPPORTED_SERVICES ERR = 127
)

var ERR_name = map[int32]string{
	0:   "UNKNOWN",
	1:   "INVALID_ARGUMENT",
	2:   "THRESHOLD_EXCEEDED",
	3:   "NOT_FOUND",
	4:   "PROCESSING",
	5:   "CONFIGURATION",
	6:   "CONTEXT",
	7:   "CONTEXT_CANCELED",
	9:   "ERROR",
	10:  "BLOCK_NOT_FOUND",
	11:  "BLOCK_INVALID",
	12:  "BLOCK_EXISTS",
	13:  "BLOCK_ERROR",
	30:  "TX_NOT_FOUND",
	31:  "TX_INVALID",
	32:  "TX_ALREADY_EXISTS",
	33:  "TX_ERROR",
	50:  "SERVICE_UNAVAILABLE",
	51:  "SERVICE_NOT_STARTED",
	52:  "SERVICE_ERROR",
	60:  "STORAGE_UNAVAILABLE",
	61:  "STORAGE_ERROR",
	100: "STATE_INITIALIZATION",
	101: "STATE_ERROR",
	110: "NETWORK_ERROR",
	111: "NETWORK_TIMEOUT",
	112: "NETWORK_CONNECTION_REFUSED",
	113: "NETWORK_INVALID_RESPONSE",
	114: "NETWORK_PEER_MALICIOUS",
	115: "NETWORK_DISCONNECTED",
	120: "WIRE_FORMAT",
	121: "WIRE_CHECKSUM",
	122: "PROTOCOL_VIOLATION",
	123: "CHECKPOINT_MISMATCH",
	124: "SELF_CONNECTION",
	125: "REQUEST_PENDING",
	126: "JOB_ABANDONED",
	127: "UNSUPPORTED_SERVICES",
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return "UNKNOWN"
}

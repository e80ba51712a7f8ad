package smb

// Subset of MS-SMB2/NTSTATUS codes referenced by the connection/session/tree
// state machines and by the scenario tests in SPEC_FULL.md §8.
const (
	StatusSuccess               uint32 = 0x00000000
	StatusPending                uint32 = 0x00000103
	StatusNoMoreFiles            uint32 = 0x80000006
	StatusMoreProcessingRequired uint32 = 0xC0000016
	StatusLogonFailure           uint32 = 0xC000006D
	StatusAccessDenied           uint32 = 0xC0000022
	StatusPathNotCovered         uint32 = 0xC0000257
	StatusInvalidParameter       uint32 = 0xC000000D
	StatusNotSupported           uint32 = 0xC00000BB
	StatusFileClosed             uint32 = 0xC0000128
	StatusEndOfFile              uint32 = 0xC0000011
)

var statusNames = map[uint32]string{
	StatusSuccess:                "STATUS_SUCCESS",
	StatusPending:                "STATUS_PENDING",
	StatusNoMoreFiles:            "STATUS_NO_MORE_FILES",
	StatusMoreProcessingRequired: "STATUS_MORE_PROCESSING_REQUIRED",
	StatusLogonFailure:           "STATUS_LOGON_FAILURE",
	StatusAccessDenied:           "STATUS_ACCESS_DENIED",
	StatusPathNotCovered:         "STATUS_PATH_NOT_COVERED",
	StatusInvalidParameter:       "STATUS_INVALID_PARAMETER",
	StatusNotSupported:           "STATUS_NOT_SUPPORTED",
	StatusFileClosed:             "STATUS_FILE_CLOSED",
	StatusEndOfFile:              "STATUS_END_OF_FILE",
}

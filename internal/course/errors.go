package course

import "fmt"

type FailureKind int

const (
	FailureNoDownloadUrl FailureKind = iota + 1
	FailureHttp
	FailureNetwork
	FailureWrite
)

func (k FailureKind) String() string {
	switch k {
	case FailureNoDownloadUrl:
		return "no_download_url"
	case FailureHttp:
		return "http_error"
	case FailureNetwork:
		return "network_error"
	case FailureWrite:
		return "write_error"
	default:
		return "unknown"
	}
}

// ParseFailureKind is the inverse of FailureKind.String, unknown names return 0.
func ParseFailureKind(name string) FailureKind {
	for _, k := range []FailureKind{FailureNoDownloadUrl, FailureHttp, FailureNetwork, FailureWrite} {
		if k.String() == name {
			return k
		}
	}
	return 0
}

const maxDetailLength = 200

// AssetError is the reason a single row failed to resolve or download, it never fails the batch.
type AssetError struct {
	Kind FailureKind
	// Status is only set for FailureHttp.
	Status int
	Detail string
}

func (e *AssetError) Error() string {
	switch e.Kind {
	case FailureNoDownloadUrl:
		if e.Detail != "" {
			return fmt.Sprintf("no download url: %s", e.Detail)
		}
		return "no download url"
	case FailureHttp:
		return fmt.Sprintf("http error: status %d", e.Status)
	case FailureNetwork:
		return fmt.Sprintf("network error: %s", e.Detail)
	case FailureWrite:
		return fmt.Sprintf("write error: %s", e.Detail)
	default:
		return e.Detail
	}
}

func capDetail(detail string) string {
	runes := []rune(detail)
	if len(runes) > maxDetailLength {
		return string(runes[:maxDetailLength])
	}
	return detail
}

func NoDownloadUrl(detail string) *AssetError {
	return &AssetError{Kind: FailureNoDownloadUrl, Detail: capDetail(detail)}
}

func HttpError(status int) *AssetError {
	return &AssetError{Kind: FailureHttp, Status: status}
}

func NetworkError(err error) *AssetError {
	return &AssetError{Kind: FailureNetwork, Detail: capDetail(err.Error())}
}

func WriteError(err error) *AssetError {
	return &AssetError{Kind: FailureWrite, Detail: capDetail(err.Error())}
}

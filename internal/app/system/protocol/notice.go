package protocol

import "fmt"

// NoticeKind selects how a notice is styled.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeInfo    NoticeKind = "info"
	NoticeError   NoticeKind = "error"
)

// Notice is the outcome of one submission. It lives only for the request
// that produced it.
type Notice struct {
	Kind  NoticeKind
	Text  string
	Count int
}

const (
	textVerifyFailed = "Nonce verification failed. Please try again."
	textNoChanges    = "No ninja status changes were made or saved, or an error occurred."
)

func verifyFailedNotice() *Notice {
	return &Notice{Kind: NoticeError, Text: textVerifyFailed}
}

func outcomeNotice(count int) *Notice {
	if count > 0 {
		return &Notice{
			Kind:  NoticeSuccess,
			Text:  fmt.Sprintf("%d user(s) ninja status updated successfully.", count),
			Count: count,
		}
	}
	return &Notice{Kind: NoticeInfo, Text: textNoChanges}
}

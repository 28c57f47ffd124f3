package monitoring

import "strconv"

// StatusLabel is used as the status label of API requests that never got
// a response.
const StatusLabel = "error"

// StatusCode formats an HTTP status code as a label value.
func StatusCode(code int) string {
	return strconv.Itoa(code)
}

func isSuccess(status string) bool {
	return len(status) == 3 && (status[0] == '2' || status[0] == '3')
}

package api

// RequestError is returned when a request completed at the transport level but
// the server reported failure, either through a non-2xx status or through an
// explicit success:false envelope.
type RequestError struct {
	Status  int    // HTTP status of the failed response
	Code    string // structured error code, when the server sent one
	Message string // human-readable message per the envelope extraction rules
}

func (e *RequestError) Error() string {
	return e.Message
}

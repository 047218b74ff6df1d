package transport

// Envelope is the wrapper of every local API response, success or error.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Meta   *Meta       `json:"meta,omitempty"`
}

// Meta correlates a response with its request; Count is set on list responses.
type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Count     *int   `json:"count,omitempty"`
}

// SnapshotInfo describes the committed snapshot in health responses.
type SnapshotInfo struct {
	Committed  bool   `json:"committed"`
	FetchedAt  string `json:"fetched_at,omitempty"`
	Refreshing bool   `json:"refreshing"`
}

func NewSuccess(data interface{}) Envelope {
	return Envelope{Status: "success", Data: data}
}

func NewError(code, message string) Envelope {
	return Envelope{Status: "error", Code: code, Error: message}
}

// NewList returns a success envelope that reports the number of items.
func NewList(data interface{}, count int) Envelope {
	env := NewSuccess(data)
	env.Meta = &Meta{Count: &count}
	return env
}

// WithData attaches a payload, e.g. diagnostics to an error response.
func (e Envelope) WithData(data interface{}) Envelope {
	e.Data = data
	return e
}

// WithRequestID stamps the request id into Meta without dropping other fields.
func (e Envelope) WithRequestID(id string) Envelope {
	if id == "" {
		return e
	}
	meta := Meta{}
	if e.Meta != nil {
		meta = *e.Meta
	}
	meta.RequestID = id
	e.Meta = &meta
	return e
}

package domain

// Request describes one call to the search engine. Built fresh per call, never reused.
type Request struct {
	Method string
	URL    string
	Body   []byte
	// ContentType defaults to application/json when Body is set.
	ContentType string
}

func (r Request) String() string { return r.Method + " " + r.URL }

// Response is a search engine reply whose body parsed as JSON.
type Response struct {
	Status int
	Body   any
	Raw    []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// ClientError reports a 4xx status. The engine answers absent indices and aliases this way.
func (r Response) ClientError() bool { return r.Status >= 400 && r.Status < 500 }

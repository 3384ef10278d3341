package adapter

// Provider name constants for the built-in adapters.
const (
	NameFastChat  = "fast-chat"
	NameDeepChat  = "deep-chat"
	NameImageGen  = "image-gen"
	NameWebSearch = "web-search"
)

// NewFastChat creates the low-latency chat adapter.
func NewFastChat(baseURL string, opts ...HTTPOption) *HTTPAdapter {
	return NewHTTP(Info{Name: NameFastChat}, baseURL, opts...)
}

// NewDeepChat creates the high-quality reasoning adapter, also used as the
// premium override for quality-sensitive requests.
func NewDeepChat(baseURL string, opts ...HTTPOption) *HTTPAdapter {
	return NewHTTP(Info{Name: NameDeepChat}, baseURL, opts...)
}

// NewImageGen creates the image generation adapter. Image backends tend to
// expose a dedicated path rather than the generic generate endpoint.
func NewImageGen(baseURL string, opts ...HTTPOption) *HTTPAdapter {
	return NewHTTP(Info{Name: NameImageGen, Endpoint: "/v1/images"}, baseURL, opts...)
}

// NewWebSearch creates the search-augmented generation adapter.
func NewWebSearch(baseURL string, opts ...HTTPOption) *HTTPAdapter {
	return NewHTTP(Info{Name: NameWebSearch, Endpoint: "/v1/search"}, baseURL, opts...)
}

// NewNamed creates a generic adapter with the given provider name, for
// endpoints configured at runtime rather than built in.
func NewNamed(name, baseURL string, opts ...HTTPOption) *HTTPAdapter {
	return NewHTTP(Info{Name: name}, baseURL, opts...)
}

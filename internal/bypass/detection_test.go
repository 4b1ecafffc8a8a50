package bypass

import "testing"

func TestDetectGoogle(t *testing.T) {
	res := &Response{
		URL:        "https://www.google.com/search?q=shoes",
		StatusCode: 200,
		Body:       []byte("<html><div class=\"g\">result</div></html>"),
	}
	if detected, _ := detectGoogle(res); detected {
		t.Errorf("expected regular results page not to be detected")
	}

	res = &Response{
		URL:        "https://www.google.com/sorry/index?continue=x",
		StatusCode: 200,
	}
	if detected, src := detectGoogle(res); !detected || src != "Google" {
		t.Errorf("expected Google detection by sorry redirect")
	}

	res = &Response{
		StatusCode: 200,
		Body:       []byte("Our systems have detected unusual traffic from your computer network."),
	}
	if detected, src := detectGoogle(res); !detected || src != "Google" {
		t.Errorf("expected Google detection by body")
	}

	res = &Response{StatusCode: 429}
	if detected, _ := detectGoogle(res); !detected {
		t.Errorf("expected Google detection by 429")
	}
}

func TestDetectCloudflare(t *testing.T) {
	// Not blocked
	res := &Response{
		StatusCode: 200,
		Headers:    map[string][]string{"Server": {"nginx"}},
		Body:       []byte("OK"),
	}
	if detected, _ := detectCloudflare(res); detected {
		t.Errorf("expected not detected")
	}

	// CF Server Header
	res = &Response{
		StatusCode: 403,
		Headers:    map[string][]string{"Server": {"cloudflare"}},
		Body:       []byte("Access Denied"),
	}
	if detected, src := detectCloudflare(res); !detected || src != "Cloudflare" {
		t.Errorf("expected Cloudflare detection by header")
	}

	// CF Body signature
	res = &Response{
		StatusCode: 503,
		Headers:    map[string][]string{},
		Body:       []byte("<html>... cf-turnstile ...</html>"),
	}
	if detected, src := detectCloudflare(res); !detected || src != "Cloudflare" {
		t.Errorf("expected Cloudflare detection by body")
	}
}

func TestDetectAkamai(t *testing.T) {
	res := &Response{
		StatusCode: 403,
		Headers:    map[string][]string{"Server": {"AkamaiGHost"}},
	}
	if detected, src := detectAkamai(res); !detected || src != "Akamai" {
		t.Errorf("expected Akamai detection by header")
	}

	res = &Response{
		StatusCode: 403,
		Headers:    map[string][]string{},
		Body:       []byte("Access Denied... Reference #123.456"),
	}
	if detected, src := detectAkamai(res); !detected || src != "Akamai" {
		t.Errorf("expected Akamai detection by body")
	}
}

func TestDetectDataDome(t *testing.T) {
	res := &Response{
		StatusCode: 403,
		Headers:    map[string][]string{"x-datadome": {"1"}},
	}
	if detected, src := detectDataDome(res); !detected || src != "DataDome" {
		t.Errorf("expected DataDome detection by lower-case header")
	}
}

func TestDetectPerimeterX(t *testing.T) {
	res := &Response{
		StatusCode: 403,
		Headers:    map[string][]string{},
		Body:       []byte("window._pxBlock = true;"),
	}
	if detected, src := detectPerimeterX(res); !detected || src != "PerimeterX" {
		t.Errorf("expected PerimeterX detection by body")
	}
}

func TestAnalyze(t *testing.T) {
	detectors := DefaultDetectors()

	detected, src := Analyze(&Response{
		StatusCode: 403,
		Headers:    map[string][]string{"X-DataDome": {"1"}},
	}, detectors)
	if !detected || src != "DataDome" {
		t.Errorf("expected DataDome, got %v %q", detected, src)
	}

	detected, src = Analyze(&Response{StatusCode: 200, Body: []byte("hello")}, detectors)
	if detected || src != "" {
		t.Errorf("expected safe response not to be detected, got %q", src)
	}

	if detected, _ := Analyze(nil, detectors); detected {
		t.Errorf("expected nil response not to be detected")
	}
}

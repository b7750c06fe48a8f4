package filter

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/fwojciec/recrawl"
	"golang.org/x/net/publicsuffix"
)

// Always accepts every request.
var Always recrawl.Filter = recrawl.FilterFunc(func(*recrawl.Request) bool { return true })

// Never rejects every request.
var Never recrawl.Filter = recrawl.FilterFunc(func(*recrawl.Request) bool { return false })

// Regexp returns a filter accepting URLs that match at least one include
// pattern (if any are given) and no exclude pattern.
func Regexp(include, exclude []string) (*recrawl.URLFilter, error) {
	f := &recrawl.URLFilter{}
	for _, pattern := range include {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, recrawl.Errorf(recrawl.EINVALID, "invalid include pattern %q: %v", pattern, err)
		}
		f.Include = append(f.Include, re)
	}
	for _, pattern := range exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, recrawl.Errorf(recrawl.EINVALID, "invalid exclude pattern %q: %v", pattern, err)
		}
		f.Exclude = append(f.Exclude, re)
	}
	return f, nil
}

// Scheme accepts requests whose URL scheme is one of schemes.
func Scheme(schemes ...string) recrawl.Filter {
	return recrawl.FilterFunc(func(req *recrawl.Request) bool {
		u, err := url.Parse(req.URL)
		if err != nil {
			return false
		}
		return slices.Contains(schemes, strings.ToLower(u.Scheme))
	})
}

// Host accepts requests whose host (without port) is one of hosts.
func Host(hosts ...string) recrawl.Filter {
	return recrawl.FilterFunc(func(req *recrawl.Request) bool {
		u, err := url.Parse(req.URL)
		if err != nil {
			return false
		}
		return slices.Contains(hosts, strings.ToLower(u.Hostname()))
	})
}

// SameSite accepts requests on the same registrable domain (eTLD+1) as
// rawURL, so docs.example.com and www.example.com are the same site.
func SameSite(rawURL string) (recrawl.Filter, error) {
	site, err := registrableDomain(rawURL)
	if err != nil {
		return nil, err
	}
	return recrawl.FilterFunc(func(req *recrawl.Request) bool {
		s, err := registrableDomain(req.URL)
		return err == nil && s == site
	}), nil
}

func registrableDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", recrawl.Errorf(recrawl.EINVALID, "invalid URL %q: %v", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", recrawl.Errorf(recrawl.EINVALID, "URL %q has no host", rawURL)
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// IPs and single-label hosts have no public suffix; compare them verbatim.
		return host, nil
	}
	return site, nil
}

// Method accepts requests using one of methods.
func Method(methods ...string) recrawl.Filter {
	return recrawl.FilterFunc(func(req *recrawl.Request) bool {
		m := req.Method
		if m == "" {
			m = "GET"
		}
		return slices.ContainsFunc(methods, func(s string) bool { return strings.EqualFold(s, m) })
	})
}

// MaxGeneration accepts requests retried at most n times.
func MaxGeneration(n int) recrawl.Filter {
	return recrawl.FilterFunc(func(req *recrawl.Request) bool {
		return req.Generation <= n
	})
}

// FirstGeneration accepts requests that are not retries.
var FirstGeneration = MaxGeneration(0)

// Tag accepts requests carrying one of tags.
func Tag(tags ...string) recrawl.Filter {
	return recrawl.FilterFunc(func(req *recrawl.Request) bool {
		return slices.Contains(tags, req.Tag)
	})
}

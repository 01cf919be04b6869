package collector

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// loadCookieFile parses a Netscape cookies.txt export (the format browser
// exporters and yt-dlp produce) into a cookie jar. Lines are seven
// tab-separated fields: domain, subdomain flag, path, secure flag, expiry,
// name, value. The #HttpOnly_ prefix some exporters add is honored.
func loadCookieFile(path string) (http.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapCategory(CategoryFilesystem, fmt.Errorf("opening cookie file: %w", err))
	}
	defer f.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	byDomain := make(map[string][]*http.Cookie)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "#HttpOnly_") {
			continue
		}
		line = strings.TrimPrefix(line, "#HttpOnly_")
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		cookie := &http.Cookie{
			Domain: fields[0],
			Path:   fields[2],
			Secure: strings.EqualFold(fields[3], "TRUE"),
			Name:   fields[5],
			Value:  fields[6],
		}
		if expires, err := strconv.ParseInt(fields[4], 10, 64); err == nil && expires > 0 {
			cookie.Expires = time.Unix(expires, 0)
		}
		host := strings.TrimPrefix(fields[0], ".")
		byDomain[host] = append(byDomain[host], cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, wrapCategory(CategoryFilesystem, fmt.Errorf("reading cookie file: %w", err))
	}

	for host, cookies := range byDomain {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host}, cookies)
	}
	return jar, nil
}

// Package fetcher turns a share link into a streamable remote file.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotShareLink = errors.New("not a supported share link")
	ErrFileNotFound = errors.New("file info unavailable")
	ErrNoDownload   = errors.New("download link unavailable")
)

type File struct {
	Name string
	Size int64
	Kind Kind
	// URL is the direct download location.
	URL string
}

type Fetcher interface {
	Resolve(ctx context.Context, link string) (*File, error)
	Open(ctx context.Context, f *File) (io.ReadCloser, error)
}

const userAgent = "Mozilla/5.0 (Android 11; Mobile; rv:68.0) Gecko/68.0 Firefox/88.0"

var DefaultEndpoints = []string{"https://terabox.com", "https://1024terabox.com"}

type Config struct {
	Cookie string
	// Endpoints are tried in order for file info; the first one also serves
	// download links.
	Endpoints []string
	Timeout   time.Duration
}

type TeraBox struct {
	cookie    string
	endpoints []string
	api       *http.Client
	stream    *http.Client
}

func NewTeraBox(cfg Config) *TeraBox {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	endpoints := make([]string, 0, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		endpoints = append(endpoints, strings.TrimRight(e, "/"))
	}
	return &TeraBox{
		cookie:    cfg.Cookie,
		endpoints: endpoints,
		api:       &http.Client{Timeout: cfg.Timeout},
		stream:    &http.Client{Timeout: 10 * time.Minute},
	}
}

type infoResponse struct {
	Errno int `json:"errno"`
	List  []struct {
		ServerFilename string `json:"server_filename"`
		Size           int64  `json:"size"`
		FsID           int64  `json:"fs_id"`
	} `json:"list"`
}

type dlinkResponse struct {
	Errno int `json:"errno"`
	Dlink []struct {
		Dlink string `json:"dlink"`
	} `json:"dlink"`
}

func (t *TeraBox) Resolve(ctx context.Context, link string) (*File, error) {
	short, ok := ShortURL(link)
	if !ok {
		return nil, ErrNotShareLink
	}

	var (
		name string
		size int64
		fsID int64
	)
	found := false
	for _, base := range t.endpoints {
		var info infoResponse
		endpoint := base + "/api/shorturlinfo?shorturl=" + url.QueryEscape(short) + "&root=1"
		if err := t.getJSON(ctx, endpoint, &info); err != nil {
			log.Debug().Err(err).Str("endpoint", base).Msg("Share info lookup failed")
			continue
		}
		if info.Errno != 0 || len(info.List) == 0 {
			continue
		}
		name, size, fsID = info.List[0].ServerFilename, info.List[0].Size, info.List[0].FsID
		found = true
		break
	}
	if !found {
		return nil, ErrFileNotFound
	}
	if name == "" {
		name = "unknown"
	}

	var dl dlinkResponse
	endpoint := fmt.Sprintf("%s/api/download?type=dlink&fidlist=[%d]", t.endpoints[0], fsID)
	if err := t.getJSON(ctx, endpoint, &dl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDownload, err)
	}
	if dl.Errno != 0 || len(dl.Dlink) == 0 || dl.Dlink[0].Dlink == "" {
		return nil, ErrNoDownload
	}
	return &File{Name: name, Size: size, Kind: KindOf(name), URL: dl.Dlink[0].Dlink}, nil
}

func (t *TeraBox) Open(ctx context.Context, f *File) (io.ReadCloser, error) {
	req, err := t.newRequest(ctx, f.URL)
	if err != nil {
		return nil, err
	}
	resp, err := t.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (t *TeraBox) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := t.newRequest(ctx, endpoint)
	if err != nil {
		return err
	}
	resp, err := t.api.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dest)
}

func (t *TeraBox) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://terabox.com/")
	if t.cookie != "" {
		req.Header.Set("Cookie", t.cookie)
	}
	return req, nil
}

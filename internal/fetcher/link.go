package fetcher

import (
	"path"
	"regexp"
	"strings"
)

var shareHosts = []string{
	"terabox.com",
	"1024terabox.com",
	"teraboxapp.com",
	"teraboxlink.com",
	"4funbox.com",
}

var (
	surlParam  = regexp.MustCompile(`surl=([^&\s]+)`)
	sharePath  = regexp.MustCompile(`/s/([^?&\s]+)`)
	trailingID = regexp.MustCompile(`terabox\.com/.*?([a-zA-Z0-9_-]+)$`)
	linkInText = regexp.MustCompile(`https?://\S+`)
)

// IsShareLink reports whether text mentions a supported share host.
func IsShareLink(text string) bool {
	lower := strings.ToLower(text)
	for _, h := range shareHosts {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// FindShareLink returns the first share URL in a chat message.
func FindShareLink(text string) (string, bool) {
	for _, m := range linkInText.FindAllString(text, -1) {
		if IsShareLink(m) {
			return strings.TrimRight(m, ".,)"), true
		}
	}
	text = strings.TrimSpace(text)
	if IsShareLink(text) && !strings.ContainsAny(text, " \n") {
		return text, true
	}
	return "", false
}

// ShortURL extracts the share identifier used by the info API.
func ShortURL(link string) (string, bool) {
	for _, re := range []*regexp.Regexp{surlParam, sharePath, trailingID} {
		if m := re.FindStringSubmatch(link); m != nil && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

type Kind string

const (
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindArchive  Kind = "archive"
	KindOther    Kind = "other"
)

var kindByExt = map[string]Kind{
	"mp4": KindVideo, "mkv": KindVideo, "avi": KindVideo, "mov": KindVideo, "wmv": KindVideo,
	"flv": KindVideo, "webm": KindVideo, "m4v": KindVideo, "3gp": KindVideo,
	"mp3": KindAudio, "flac": KindAudio, "wav": KindAudio, "aac": KindAudio, "m4a": KindAudio,
	"ogg": KindAudio, "wma": KindAudio,
	"jpg": KindImage, "jpeg": KindImage, "png": KindImage, "gif": KindImage, "webp": KindImage,
	"bmp": KindImage, "svg": KindImage,
	"pdf": KindDocument, "doc": KindDocument, "docx": KindDocument, "xls": KindDocument,
	"xlsx": KindDocument, "ppt": KindDocument, "pptx": KindDocument, "txt": KindDocument,
	"zip": KindArchive, "rar": KindArchive, "7z": KindArchive, "tar": KindArchive,
	"gz": KindArchive, "bz2": KindArchive,
}

func KindOf(fileName string) Kind {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if k, ok := kindByExt[ext]; ok {
		return k
	}
	return KindOther
}

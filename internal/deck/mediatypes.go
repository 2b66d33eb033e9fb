package deck

import "strings"

// Video formats and streaming hosts PowerPoint links to. URL prefixes keep
// their trailing slash so lookalike domains don't match.
var videoIndicators = []string{
	".mov", ".qt",
	".mp4", ".m4v", ".mpg", ".mpeg", ".mpe", ".m15", ".m75", ".m2v", ".ts",
	".wmv",
	".dvi",
	".avi", ".vfw",
	".asf",
	"https://www.youtube.com/",
	"https://player.vimeo.com/",
	"https://dailymotion.com/",
}

var audioExtensions = []string{
	".aif", ".aiff",
	".au", ".snd",
	".mid", ".midi",
	".mp3", ".mpga",
	".m4a",
	".wav", ".wave", ".bwf",
	".aa", ".aax",
	".wma",
	".aac", ".caf", ".m4r", ".ac3", ".eac3",
}

// IsAudioExtension reports whether ext (with leading dot) is a supported
// embedded-audio format.
func IsAudioExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, a := range audioExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// IsVideoTarget reports whether a relationship target looks like a video
// file or a known streaming host URL.
func IsVideoTarget(target string) bool {
	t := strings.ToLower(target)
	for _, v := range videoIndicators {
		if strings.Contains(t, v) {
			return true
		}
	}
	return false
}

// IsAudioTarget reports whether a relationship target references an audio
// file.
func IsAudioTarget(target string) bool {
	t := strings.ToLower(target)
	for _, a := range audioExtensions {
		if strings.Contains(t, a) {
			return true
		}
	}
	return false
}

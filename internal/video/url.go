package video

import (
	"errors"
	"regexp"
	"strings"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/security"
)

var (
	youtubeURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+$`)
	youtubeIDPattern  = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)
)

// URLValidator はURLの事前検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// EmbedURL はYouTubeのURLを埋め込み用URLに変換する。
// 11文字の動画IDが取り出せない場合は元のURLを返す。
func EmbedURL(rawURL string) string {
	m := youtubeIDPattern.FindStringSubmatch(rawURL)
	if len(m) == 3 && len(m[2]) == 11 {
		return "https://www.youtube.com/embed/" + m[2]
	}
	return rawURL
}

// checkVideoURL はYouTubeのURL形式とSSRFガードの両方で検証する。
func checkVideoURL(guard URLValidator, rawURL string) error {
	if !youtubeURLPattern.MatchString(rawURL) {
		return model.NewValidationError("유효한 YouTube URL을 입력해주세요.",
			model.FieldError{Field: "videoUrl", Error: "videoUrl must be a YouTube URL"})
	}

	target := rawURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}
	if err := guard.ValidateURL(target); err != nil {
		if errors.Is(err, security.ErrBlockedAddress) {
			return model.NewSSRFBlockedError()
		}
		return model.NewInvalidURLError(err.Error())
	}
	return nil
}

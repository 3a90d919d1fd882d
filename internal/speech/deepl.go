package speech

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/voicebridge/internal/lang"
)

const DefaultDeepLURL = "https://api-free.deepl.com/v2/translate"

// DeepLConfig configures the DeepL translator.
type DeepLConfig struct {
	APIKey  string
	URL     string
	Timeout time.Duration
}

// DeepLTranslator posts form-encoded requests to the DeepL v2 API.
type DeepLTranslator struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewDeepLTranslator(cfg DeepLConfig) (*DeepLTranslator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("deepl translator: api key is required")
	}
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		endpoint = DefaultDeepLURL
	}
	return &DeepLTranslator{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   newHTTPClient(cfg.Timeout),
	}, nil
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// DeepL sometimes echoes a literal line separator token back.
var deeplLineBreak = strings.NewReplacer(`\newLine`, " ", `\n`, " ")

func (d *DeepLTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", strings.ToUpper(lang.Base(targetLanguage)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)

	var out deeplResponse
	if err := doJSON(d.client, "deepl", req, &out); err != nil {
		return "", err
	}
	if len(out.Translations) == 0 {
		return "", errors.New("deepl: response has no translations")
	}
	return strings.TrimSpace(deeplLineBreak.Replace(out.Translations[0].Text)), nil
}

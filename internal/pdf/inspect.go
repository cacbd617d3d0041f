package pdf

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MIMEType is the content type accepted for uploads.
const MIMEType = "application/pdf"

var (
	headerVersion = regexp.MustCompile(`^%PDF-(\d\.\d)`)
	encryptKey    = []byte("/Encrypt")
)

// Info is a structural summary read without rendering any page.
type Info struct {
	MIME      string `json:"mime"`
	Version   string `json:"version,omitempty"`
	Encrypted bool   `json:"encrypted"`
	Pages     int    `json:"pages"`
}

// IsPDF sniffs data and reports whether it is a PDF.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is(MIMEType)
}

// Inspect sniffs the content type and counts pages with pdfcpu in relaxed
// validation mode.
func Inspect(data []byte) (Info, error) {
	info := Info{MIME: mimetype.Detect(data).String()}
	if !IsPDF(data) {
		return info, fmt.Errorf("%w: content type is %s", ErrInspect, info.MIME)
	}

	if m := headerVersion.FindSubmatch(data); m != nil {
		info.Version = string(m[1])
	}
	info.Encrypted = bytes.Contains(data, encryptKey)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return info, fmt.Errorf("%w: %v", ErrInspect, err)
	}
	info.Pages = n
	return info, nil
}

package imageio

import (
	"encoding/base64"
	"image/color"
	"os"
	"testing"

	"screendeck/internal/apperr"
	"screendeck/internal/tester"
)

func TestExtractRoundTripsDataURIAndBare(t *testing.T) {
	raw := tester.SolidPNG(t, 4, 4, color.Black)
	enc := base64.StdEncoding.EncodeToString(raw)

	for _, payload := range []string{enc, "data:image/png;base64," + enc} {
		got, err := Extract(payload)
		tester.NoErr(t, err)
		tester.Eq(t, got, raw)
		tester.Eq(t, base64.StdEncoding.EncodeToString(got), enc)
		tester.True(t, Validate(payload))
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	for _, payload := range []string{"", "   ", "data:image/png;base64", "data:image/png;base64,@@@@", "not base64!!"} {
		tester.False(t, Validate(payload), payload)
	}
	_, err := Extract("%%%")
	tester.True(t, apperr.Is(err, apperr.Input))
}

func TestExtractToleratesLineBreaks(t *testing.T) {
	raw := []byte("hello world, this is wrapped")
	enc := base64.StdEncoding.EncodeToString(raw)
	wrapped := enc[:8] + "\n" + enc[8:]
	got, err := Extract(wrapped)
	tester.NoErr(t, err)
	tester.Eq(t, got, raw)
}

func TestLoadRejectsDecodableNonImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("plain text, not pixels"))
	tester.True(t, Validate(payload))
	_, err := Load(payload, 0)
	tester.ErrContains(t, err, "invalid image data")
	tester.True(t, apperr.Is(err, apperr.Input))
}

func TestLoadDetectsMIME(t *testing.T) {
	p, err := Load(tester.RedSquareDataURI(t), 0)
	tester.NoErr(t, err)
	tester.Eq(t, p.MIME, "image/png")
	tester.Eq(t, p.Format, "png")
	tester.Eq(t, p.Image.Bounds().Dx(), 10)
}

func TestLoadEnforcesSize(t *testing.T) {
	_, err := Load(tester.RedSquareDataURI(t), 8)
	tester.ErrContains(t, err, "exceeds")
}

func TestTempImageRemovedOnClose(t *testing.T) {
	p, err := Load(tester.RedSquareDataURI(t), 0)
	tester.NoErr(t, err)
	tmp, err := WriteTemp(p.Image)
	tester.NoErr(t, err)
	_, err = os.Stat(tmp.Path())
	tester.NoErr(t, err)

	tester.NoErr(t, tmp.Close())
	tester.NoErr(t, tmp.Close())
	_, err = os.Stat(tmp.Path())
	tester.True(t, os.IsNotExist(err))
}

func TestMIMEFromDataURI(t *testing.T) {
	tester.Eq(t, MIMEFromDataURI("data:image/JPEG;base64,AAAA"), "image/jpeg")
	tester.Eq(t, MIMEFromDataURI("AAAA"), "")
}

package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/pavelanni/autograder/internal/answers"
)

type fakeOracle struct {
	reply string
	err   error
	calls int
	got   string
}

func (f *fakeOracle) DetectAnswers(_ context.Context, text string) (string, error) {
	f.calls++
	f.got = text
	return f.reply, f.err
}

type fakeRecognizer struct {
	images [][]byte
}

func (f *fakeRecognizer) Recognize(_ context.Context, img []byte) (string, error) {
	f.images = append(f.images, img)
	return "page text", nil
}

func constant(text string, err error) Extractor {
	return Func(func(context.Context, Document) (string, error) { return text, err })
}

func testImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	return img
}

func TestNewDocumentSniffsType(t *testing.T) {
	var pngBuf, tiffBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, testImage()))
	require.NoError(t, tiff.Encode(&tiffBuf, testImage(), nil))

	tests := []struct {
		name string
		file string
		data []byte
		want string
	}{
		{"pdf magic", "exam.bin", []byte("%PDF-1.7\n..."), TypePDF},
		{"png magic", "scan", pngBuf.Bytes(), TypePNG},
		{"tiff magic", "scan.dat", tiffBuf.Bytes(), TypeTIFF},
		{"extension fallback", "scan.JPG", []byte("garbage"), TypeJPEG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := NewDocument(tt.file, tt.data)
			assert.Equal(t, tt.want, doc.ContentType)
			assert.NotEmpty(t, doc.ID)
			assert.Equal(t, int64(len(tt.data)), doc.Size())
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" LLM ")
	require.NoError(t, err)
	assert.Equal(t, StrategyLLM, s)

	_, err = ParseStrategy("vision")
	assert.Error(t, err)
}

func TestStrategyNames(t *testing.T) {
	names := StrategyNames()
	assert.Equal(t, []string{"auto", "text", "ocr", "llm", "marks"}, names)
	for _, n := range names {
		_, err := ParseStrategy(n)
		assert.NoError(t, err, n)
	}
}

func TestNew(t *testing.T) {
	oracle := &fakeOracle{}
	ocr := NewOCR(&fakeRecognizer{}, 5)

	tests := []struct {
		name     string
		strategy Strategy
		cfg      Config
		wantErr  bool
	}{
		{"text", StrategyText, Config{}, false},
		{"ocr without engine", StrategyOCR, Config{}, true},
		{"ocr", StrategyOCR, Config{OCR: ocr}, false},
		{"llm without oracle", StrategyLLM, Config{}, true},
		{"llm", StrategyLLM, Config{Oracle: oracle}, false},
		{"marks", StrategyMarks, Config{}, false},
		{"auto without oracle", StrategyAuto, Config{}, false},
		{"unknown", "vision", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := New(tt.strategy, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, ex)
		})
	}
}

func TestDetectMarks(t *testing.T) {
	text := strings.Join([]string{
		"EXAMEN FINAL",
		"1) a X   b   c",
		"2.  b   c x  d",
		"3 V  x",
		"4) a   b   c",
		"12 - e (X)",
	}, "\n")

	got := DetectMarks(text)
	assert.Equal(t, answers.Mapping{1: "a", 2: "b", 3: "v", 12: "e"}, got)
	assert.Empty(t, DetectMarks(""))
}

func TestMarksExtractor(t *testing.T) {
	m := &Marks{Source: constant("1) c X\n2) f x", nil)}
	got, err := m.Extract(context.Background(), Document{Name: "a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "1:c, 2:f", got)
	assert.Equal(t, answers.Mapping{1: "c", 2: "f"}, answers.Parse(got))
}

func TestLayered(t *testing.T) {
	long := strings.Repeat("1) a X ", 20)

	t.Run("long text skips OCR", func(t *testing.T) {
		ocrCalled := false
		l := &Layered{
			Text: constant(long, nil),
			OCR: Func(func(context.Context, Document) (string, error) {
				ocrCalled = true
				return "", nil
			}),
			MinTextLen: DefaultMinTextLen,
		}
		got, err := l.Extract(context.Background(), Document{})
		require.NoError(t, err)
		assert.Equal(t, long, got)
		assert.False(t, ocrCalled)
	})

	t.Run("short text replaced by longer OCR", func(t *testing.T) {
		l := &Layered{Text: constant("x", nil), OCR: constant(long, nil), MinTextLen: DefaultMinTextLen}
		got, err := l.Extract(context.Background(), Document{})
		require.NoError(t, err)
		assert.Equal(t, long, got)
	})

	t.Run("text error falls back to OCR", func(t *testing.T) {
		l := &Layered{Text: constant("", ErrUnsupported), OCR: constant("scan", nil), MinTextLen: DefaultMinTextLen}
		got, err := l.Extract(context.Background(), Document{})
		require.NoError(t, err)
		assert.Equal(t, "scan", got)
	})

	t.Run("short text kept when OCR fails", func(t *testing.T) {
		l := &Layered{Text: constant("1:a", nil), OCR: constant("", errors.New("boom")), MinTextLen: DefaultMinTextLen}
		got, err := l.Extract(context.Background(), Document{})
		require.NoError(t, err)
		assert.Equal(t, "1:a", got)
	})

	t.Run("nothing extracted", func(t *testing.T) {
		l := &Layered{Text: constant("  ", nil), MinTextLen: DefaultMinTextLen}
		_, err := l.Extract(context.Background(), Document{Name: "blank.pdf"})
		assert.ErrorIs(t, err, ErrNoText)
	})
}

func TestLLMExtractor(t *testing.T) {
	oracle := &fakeOracle{reply: `{"1":"b"}`}
	l := &LLM{Source: constant("sheet text", nil), Oracle: oracle}
	got, err := l.Extract(context.Background(), Document{})
	require.NoError(t, err)
	assert.Equal(t, `{"1":"b"}`, got)
	assert.Equal(t, "sheet text", oracle.got)

	oracle = &fakeOracle{err: errors.New("unavailable")}
	l = &LLM{Source: constant("sheet text", nil), Oracle: oracle}
	_, err = l.Extract(context.Background(), Document{})
	assert.Error(t, err)
}

func TestAuto(t *testing.T) {
	text := "1) a X\n2) c x"

	t.Run("model answers used", func(t *testing.T) {
		a := &Auto{Source: constant(text, nil), Oracle: &fakeOracle{reply: `{"1":"d"}`}}
		got, err := a.Extract(context.Background(), Document{})
		require.NoError(t, err)
		assert.Equal(t, answers.Mapping{1: "d"}, answers.ParseOracleResponse(got))
	})

	t.Run("empty model reply falls back to marks", func(t *testing.T) {
		a := &Auto{Source: constant(text, nil), Oracle: &fakeOracle{reply: "{}"}}
		got, err := a.Extract(context.Background(), Document{})
		require.NoError(t, err)
		assert.Equal(t, "1:a, 2:c", got)
	})

	t.Run("model error falls back to marks", func(t *testing.T) {
		a := &Auto{Source: constant(text, nil), Oracle: &fakeOracle{err: errors.New("503")}}
		got, err := a.Extract(context.Background(), Document{})
		require.NoError(t, err)
		assert.Equal(t, "1:a, 2:c", got)
	})

	t.Run("no model configured", func(t *testing.T) {
		a := &Auto{Source: constant(text, nil)}
		got, err := a.Extract(context.Background(), Document{})
		require.NoError(t, err)
		assert.Equal(t, "1:a, 2:c", got)
	})

	t.Run("source error propagates", func(t *testing.T) {
		oracle := &fakeOracle{}
		a := &Auto{Source: constant("", ErrNoText), Oracle: oracle}
		_, err := a.Extract(context.Background(), Document{})
		assert.ErrorIs(t, err, ErrNoText)
		assert.Equal(t, 0, oracle.calls)
	})
}

func TestOCRImages(t *testing.T) {
	var pngBuf, tiffBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, testImage()))
	require.NoError(t, tiff.Encode(&tiffBuf, testImage(), nil))

	rec := &fakeRecognizer{}
	o := NewOCR(rec, 5)

	got, err := o.Extract(context.Background(), NewDocument("scan.png", pngBuf.Bytes()))
	require.NoError(t, err)
	assert.Contains(t, got, "page text")

	_, err = o.Extract(context.Background(), NewDocument("scan.tiff", tiffBuf.Bytes()))
	require.NoError(t, err)

	require.Len(t, rec.images, 2)
	_, err = png.Decode(bytes.NewReader(rec.images[1]))
	assert.NoError(t, err, "TIFF scans should reach the recognizer as PNG")
}

func TestUnsupportedTypes(t *testing.T) {
	doc := Document{Name: "notes.txt", ContentType: "text/plain", Data: []byte("1:a")}

	_, err := NewOCR(&fakeRecognizer{}, 5).Extract(context.Background(), doc)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = (&PDFText{MaxPages: 5}).Extract(context.Background(), doc)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestPDFTextMalformed(t *testing.T) {
	doc := Document{Name: "broken.pdf", ContentType: TypePDF, Data: []byte("%PDF-1.4 not really")}
	_, err := (&PDFText{MaxPages: 5}).Extract(context.Background(), doc)
	assert.Error(t, err)
}

func TestRasterArgs(t *testing.T) {
	o := &OCR{MaxPages: 3}
	assert.Equal(t,
		[]string{"-png", "-r", "200", "-f", "1", "-l", "3", "in.pdf", "out/page"},
		o.rasterArgs("in.pdf", "out/page"))
}

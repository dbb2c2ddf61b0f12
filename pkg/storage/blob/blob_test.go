package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	assert.Equal(t, "my_report_2024_.pdf", SafeName("my report(2024).pdf"))
	assert.Equal(t, "upload.bin", SafeName(""))
	assert.Equal(t, ".._etc_passwd", SafeName("../etc/passwd"))
	assert.Equal(t, "résumé.docx", SafeName("résumé.docx"))
}

func TestKey(t *testing.T) {
	k, err := Key("uploads/scan-1", "a b.txt")
	require.NoError(t, err)
	assert.Equal(t, "uploads/scan-1/a_b.txt", k)

	k, err = Key("../../artifacts//x", "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "artifacts/x/f.txt", k)

	_, err = Key("uploads", "..")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

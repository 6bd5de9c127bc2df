package importer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCountry(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
		wantErr  string
	}{
		{name: "argentina", filename: "detalle_AR_2024.xlsx", want: "Argentina"},
		{name: "lower case code", filename: "detalle_pe-enero.csv", want: "Perú"},
		{name: "code followed by text", filename: "detalle_CLxx.xlsx", want: "Chile"},
		{name: "short segment", filename: "detalle_U", wantErr: "Código país no reconocido en detalle_U"},
		{name: "missing prefix", filename: "AR_2024.xlsx", wantErr: "Archivo AR_2024.xlsx no comienza con 'detalle_'"},
		{name: "unknown code", filename: "detalle_MX_2024.xlsx", wantErr: "Código país no reconocido en detalle_MX_2024.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectCountry(tt.filename)
			if tt.wantErr != "" {
				require.Error(t, err)
				var inErr *InputError
				assert.True(t, errors.As(err, &inErr), "expected *InputError, got %T", err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileError(t *testing.T) {
	cause := errors.New("boom")
	err := &FileError{File: "detalle_AR.xlsx", Err: cause}

	assert.Equal(t, "Error procesando detalle_AR.xlsx: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

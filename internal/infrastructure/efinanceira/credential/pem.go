// Carga desde archivos PEM (certificado y llave por separado, o combinados).

package credential

import (
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

// FromPEM carga certificado(s) y llave desde PEM. Si keyPath es vacío la llave se busca en certPath.
func FromPEM(certPath, keyPath string) (*Credential, error) {
	if certPath == "" {
		return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrCredentialNotFound,
			Cause: errors.New("ruta de certificado vacía")}
	}
	if keyPath == "" {
		keyPath = certPath
	}

	certPEM, err := readPEMFile(certPath)
	if err != nil {
		return nil, err
	}
	keyPEM := certPEM
	if keyPath != certPath {
		if keyPEM, err = readPEMFile(keyPath); err != nil {
			return nil, err
		}
	}

	blocks := pemBlocks(certPEM, func(t string) bool { return t == "CERTIFICATE" })
	for _, b := range pemBlocks(keyPEM, func(t string) bool { return strings.HasSuffix(t, "PRIVATE KEY") }) {
		blocks = append(blocks, &pem.Block{Type: "PRIVATE KEY", Bytes: b.Bytes})
	}
	return fromPEMBlocks(blocks, certPath)
}

func pemBlocks(data []byte, keep func(blockType string) bool) []*pem.Block {
	var out []*pem.Block
	for {
		var b *pem.Block
		b, data = pem.Decode(data)
		if b == nil {
			return out
		}
		if keep(b.Type) {
			out = append(out, b)
		}
	}
}

func readPEMFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &efinanceira.CredentialError{Kind: efinanceira.ErrCredentialNotFound, Source: path, Cause: err}
		}
		return nil, fmt.Errorf("efin: leer PEM: %w", err)
	}
	return data, nil
}

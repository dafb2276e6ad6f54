// Package traefik reads certificates from a traefik acme.json store.
package traefik

import (
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var ErrDomainNotFound = errors.New("domain not found")

type acmeCert struct {
	Certificate string `json:"certificate"`
	Key         string `json:"key"`
}

// GetCertFromTraefik reads the acme file and returns the key pair of domain.
func GetCertFromTraefik(file, domain string) (tls.Certificate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read %s: %w", file, err)
	}
	return GetCertificate(string(data), domain)
}

func GetCertificate(jsonData, domain string) (tls.Certificate, error) {
	certData, keyData, err := getCertData(jsonData, domain)
	if err != nil {
		return tls.Certificate{}, err
	}
	decodedCertData, err := base64.StdEncoding.DecodeString(certData)
	if err != nil {
		return tls.Certificate{}, err
	}
	decodedKeyData, err := base64.StdEncoding.DecodeString(keyData)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(decodedCertData, decodedKeyData)
}

// entries of all resolvers are searched
func getCertData(jsonData, domain string) (cert, key string, err error) {
	obj, err := oj.ParseString(jsonData)
	if err != nil {
		return "", "", err
	}
	path, err := jp.ParseString(
		fmt.Sprintf(`$..Certificates[?(@.domain.main == %q)]`, domain))
	if err != nil {
		return "", "", err
	}
	res := path.Get(obj)
	if len(res) == 0 {
		return "", "", fmt.Errorf("%w: %s", ErrDomainNotFound, domain)
	}
	var entry acmeCert
	if err = oj.Unmarshal([]byte(oj.JSON(res[0])), &entry); err != nil {
		return "", "", err
	}
	return entry.Certificate, entry.Key, nil
}

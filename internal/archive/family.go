package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Family is an archive container format
type Family string

const (
	Unknown  Family = ""
	Zip      Family = "zip"
	SevenZip Family = "7z"
	Rar      Family = "rar"
	Tar      Family = "tar"
	TarGz    Family = "tar.gz"
	TarXz    Family = "tar.xz"
)

// Ext returns the canonical file extension for the family, including the dot
func (f Family) Ext() string {
	if f == Unknown {
		return ""
	}
	return "." + string(f)
}

// IsTar reports whether the family is a (possibly compressed) tarball
func (f Family) IsTar() bool {
	return f == Tar || f == TarGz || f == TarXz
}

// FamilyFromName determines the archive family from a file name or URL path.
// Compound extensions are checked before simple ones.
func FamilyFromName(name string) Family {
	name = strings.ToLower(name)

	if strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz") {
		return TarGz
	}
	if strings.HasSuffix(name, ".tar.xz") || strings.HasSuffix(name, ".txz") {
		return TarXz
	}

	switch filepath.Ext(name) {
	case ".zip":
		return Zip
	case ".7z":
		return SevenZip
	case ".rar":
		return Rar
	case ".tar":
		return Tar
	}
	return Unknown
}

// FamilyFromContentType maps an HTTP Content-Type to an archive family
func FamilyFromContentType(contentType string) Family {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch ct {
	case "application/zip", "application/x-zip-compressed", "application/x-zip":
		return Zip
	case "application/x-7z-compressed":
		return SevenZip
	case "application/x-rar-compressed", "application/vnd.rar", "application/x-rar":
		return Rar
	case "application/x-tar":
		return Tar
	case "application/gzip", "application/x-gzip", "application/x-compressed-tar":
		return TarGz
	case "application/x-xz", "application/x-xz-compressed-tar":
		return TarXz
	}
	return Unknown
}

var (
	magicZip      = []byte("PK\x03\x04")
	magicZipEmpty = []byte("PK\x05\x06")
	magic7z       = []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}
	magicRar      = []byte("Rar!\x1A\x07")
	magicGzip     = []byte{0x1F, 0x8B}
	magicXz       = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	magicUstar    = []byte("ustar")
)

// FamilyFromHeader sniffs the family from the first bytes of an archive
func FamilyFromHeader(header []byte) Family {
	switch {
	case bytes.HasPrefix(header, magicZip), bytes.HasPrefix(header, magicZipEmpty):
		return Zip
	case bytes.HasPrefix(header, magic7z):
		return SevenZip
	case bytes.HasPrefix(header, magicRar):
		return Rar
	case bytes.HasPrefix(header, magicGzip):
		return TarGz
	case bytes.HasPrefix(header, magicXz):
		return TarXz
	case len(header) >= 262 && bytes.Equal(header[257:262], magicUstar):
		return Tar
	}
	return Unknown
}

// DetectFamily uses the file extension and falls back to magic bytes
func DetectFamily(path string) (Family, error) {
	if f := FamilyFromName(path); f != Unknown {
		return f, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Unknown, err
	}
	defer file.Close()

	header := make([]byte, 512)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Unknown, err
	}
	return FamilyFromHeader(header[:n]), nil
}

package musicxml

import (
	"bytes"
	"encoding/xml"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/scoreframes/pkg/errors"
)

// containerPath is where compressed MusicXML stores its rootfile index.
const containerPath = "META-INF/container.xml"

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// unpackMXL returns the primary score document from a compressed .mxl
// archive. The container index is authoritative; archives without one fall
// back to the first .musicxml/.xml entry outside META-INF.
func unpackMXL(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScore, err, "open .mxl archive")
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	name := ""
	if f, ok := files[containerPath]; ok {
		raw, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		var c container
		if err := xml.Unmarshal(raw, &c); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidScore, err, "parse %s", containerPath)
		}
		for _, rf := range c.Rootfiles {
			if rf.MediaType == "" || strings.Contains(rf.MediaType, "musicxml") {
				name = rf.FullPath
				break
			}
		}
	}
	if name == "" {
		for _, f := range zr.File {
			ext := strings.ToLower(path.Ext(f.Name))
			if !strings.HasPrefix(f.Name, "META-INF/") && (ext == ".musicxml" || ext == ".xml") {
				name = f.Name
				break
			}
		}
	}

	f, ok := files[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidScore, ".mxl archive has no score document")
	}
	return readZipFile(f)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScore, err, "open %s", f.Name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScore, err, "read %s", f.Name)
	}
	return data, nil
}

// Package webdav holds the PROPFIND response documents for the read-only
// WebDAV view of the tree.
package webdav

import (
	"encoding/xml"
	"io"
	"time"
)

const statusOK = "HTTP/1.1 200 OK"

// WebDAV XML structures
type Multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []Response `xml:"response"`
}

type Response struct {
	XMLName  xml.Name `xml:"DAV: response"`
	Href     string   `xml:"href"`
	Propstat Propstat `xml:"propstat"`
}

type Propstat struct {
	XMLName xml.Name `xml:"DAV: propstat"`
	Prop    Prop     `xml:"prop"`
	Status  string   `xml:"status"`
}

type Prop struct {
	XMLName      xml.Name      `xml:"DAV: prop"`
	DisplayName  string        `xml:"displayname,omitempty"`
	ResourceType *ResourceType `xml:"resourcetype,omitempty"`
	ContentType  string        `xml:"getcontenttype,omitempty"`
	LastModified string        `xml:"getlastmodified,omitempty"`
	ETag         string        `xml:"getetag,omitempty"`
}

type ResourceType struct {
	XMLName    xml.Name    `xml:"DAV: resourcetype"`
	Collection *Collection `xml:"collection,omitempty"`
}

type Collection struct {
	XMLName xml.Name `xml:"DAV: collection"`
}

// CollectionResponse describes a host or directory. href should end in "/".
func CollectionResponse(href, name string, modTime time.Time) Response {
	return Response{
		Href: href,
		Propstat: Propstat{
			Prop: Prop{
				DisplayName:  name,
				ResourceType: &ResourceType{Collection: &Collection{}},
				LastModified: FormatTime(modTime),
			},
			Status: statusOK,
		},
	}
}

// FileResponse describes a file leaf. Files have no resource type.
func FileResponse(href, name, contentType string, modTime time.Time) Response {
	return Response{
		Href: href,
		Propstat: Propstat{
			Prop: Prop{
				DisplayName:  name,
				ContentType:  contentType,
				LastModified: FormatTime(modTime),
				ETag:         GenerateETag(href, modTime),
			},
			Status: statusOK,
		},
	}
}

// Encode writes the multistatus document with its XML declaration.
func Encode(w io.Writer, ms Multistatus) error {
	data, err := xml.MarshalIndent(ms, "", "  ")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// FormatTime formats a time for WebDAV responses
func FormatTime(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}

// GenerateETag derives an ETag from a path and the tree build time
func GenerateETag(href string, builtAt time.Time) string {
	return `"` + href + "-" + builtAt.UTC().Format("20060102150405") + `"`
}

package apkinfo

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/shogo82148/androidbinary"
)

// Binary XML chunk and attribute-value type constants (AOSP
// frameworks/base/libs/androidfw/include/androidfw/ResourceTypes.h).
const (
	chunkStartElement = 0x0102
	chunkEndElement   = 0x0103

	attrTypeReference = 0x01
	attrTypeString    = 0x03
	attrTypeIntDec    = 0x10
	attrTypeIntHex    = 0x11
	attrTypeIntBool   = 0x12
)

// axmlAttr is one fully-decoded attribute on a manifest element.
type axmlAttr struct {
	Name     string
	RawValue string // string-pool value; set only for string-typed attributes
	DataType uint8
	Data     uint32
}

// axmlElement is a <start> event with its attributes; children are
// delivered as their own start/end events by the walker, the caller
// tracks nesting itself via a stack of element names.
type axmlElement struct {
	Name  string
	Attrs []axmlAttr
}

// walkManifest parses the AXML chunk stream and invokes onStart/onEnd for
// every element, mirroring the teacher's single-purpose findLabelResourceID
// scanner but generalized into a reusable tree walker so dependency
// extraction (uses-library, uses-static-library, uses-package) can share it.
func walkManifest(xmlFile *androidbinary.XMLFile, data []byte, onStart func(axmlElement), onEnd func(string)) {
	reader := bytes.NewReader(data)

	var mainHeaderSize uint16
	var mainChunkType uint16
	var mainChunkSize uint32
	binary.Read(reader, binary.LittleEndian, &mainChunkType)
	binary.Read(reader, binary.LittleEndian, &mainHeaderSize)
	binary.Read(reader, binary.LittleEndian, &mainChunkSize)

	offset := int64(mainHeaderSize)
	fileSize := int64(len(data))

	for offset < fileSize {
		if offset+8 > fileSize {
			break
		}
		reader.Seek(offset, io.SeekStart)
		var chunkType uint16
		var headerSize uint16
		var chunkSize uint32
		binary.Read(reader, binary.LittleEndian, &chunkType)
		binary.Read(reader, binary.LittleEndian, &headerSize)
		binary.Read(reader, binary.LittleEndian, &chunkSize)

		if chunkSize == 0 || chunkSize > uint32(fileSize) || int64(headerSize) > int64(chunkSize) {
			break
		}

		switch chunkType {
		case chunkStartElement:
			reader.Seek(offset+int64(headerSize), io.SeekStart)
			var ns, name uint32
			binary.Read(reader, binary.LittleEndian, &ns)
			binary.Read(reader, binary.LittleEndian, &name)
			elemName := xmlFile.GetString(androidbinary.ResStringPoolRef(name))

			var attrStart, attrSize, attrCount uint16
			binary.Read(reader, binary.LittleEndian, &attrStart)
			binary.Read(reader, binary.LittleEndian, &attrSize)
			binary.Read(reader, binary.LittleEndian, &attrCount)
			reader.Seek(6, io.SeekCurrent) // idIndex, classIndex, styleIndex

			attrs := make([]axmlAttr, 0, attrCount)
			for i := uint16(0); i < attrCount; i++ {
				var nsIdx, nameIdx, rawValue uint32
				var typedSize uint16
				var res0 uint8
				var dataType uint8
				var typedData uint32
				binary.Read(reader, binary.LittleEndian, &nsIdx)
				binary.Read(reader, binary.LittleEndian, &nameIdx)
				binary.Read(reader, binary.LittleEndian, &rawValue)
				binary.Read(reader, binary.LittleEndian, &typedSize)
				binary.Read(reader, binary.LittleEndian, &res0)
				binary.Read(reader, binary.LittleEndian, &dataType)
				binary.Read(reader, binary.LittleEndian, &typedData)

				attrName := xmlFile.GetString(androidbinary.ResStringPoolRef(nameIdx))
				a := axmlAttr{Name: attrName, DataType: dataType, Data: typedData}
				switch dataType {
				case attrTypeString:
					a.RawValue = xmlFile.GetString(androidbinary.ResStringPoolRef(typedData))
				}
				attrs = append(attrs, a)
			}
			if onStart != nil {
				onStart(axmlElement{Name: elemName, Attrs: attrs})
			}

		case chunkEndElement:
			reader.Seek(offset+int64(headerSize), io.SeekStart)
			var ns, name uint32
			binary.Read(reader, binary.LittleEndian, &ns)
			binary.Read(reader, binary.LittleEndian, &name)
			elemName := xmlFile.GetString(androidbinary.ResStringPoolRef(name))
			if onEnd != nil {
				onEnd(elemName)
			}
		}

		offset += int64(chunkSize)
	}
}

// attrString returns the string-pool value of a string-typed attribute;
// a typed integer or boolean attribute has no string form and yields "".
func attrString(a axmlAttr) string {
	if a.RawValue != "" {
		return a.RawValue
	}
	return ""
}

// attrBool returns an attribute's boolean value (TYPE_INT_BOOLEAN), or
// defaultValue if the attribute wasn't present.
func attrBool(attrs []axmlAttr, name string, defaultValue bool) bool {
	for _, a := range attrs {
		if a.Name == name {
			if a.DataType == attrTypeIntBool || a.DataType == attrTypeIntDec || a.DataType == attrTypeIntHex {
				return a.Data != 0
			}
			return defaultValue
		}
	}
	return defaultValue
}

// attrInt32 returns an attribute's integer value, or (0, false) if absent.
func attrInt32(attrs []axmlAttr, name string) (int32, bool) {
	for _, a := range attrs {
		if a.Name == name {
			switch a.DataType {
			case attrTypeIntDec, attrTypeIntHex:
				return int32(a.Data), true
			}
			return 0, false
		}
	}
	return 0, false
}

// attrValue returns an attribute's string value (resolving the typed
// string-pool slot), or ("", false) if absent.
func attrValue(attrs []axmlAttr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return attrString(a), true
		}
	}
	return "", false
}

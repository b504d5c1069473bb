package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/woopsa-protocol/woopsa-go/pkg/version"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records of a server.
func EncodeTXT(info *ServerInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyPath:    info.Path,
		TXTKeyVersion: info.Version,
	}
	if info.Version == "" {
		txt[TXTKeyVersion] = version.Current
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	return txt
}

// DecodeTXT parses the TXT records of a server. A server announcing an
// incompatible version is rejected with version.ErrIncompatible.
func DecodeTXT(txt TXTRecordMap) (*ServerInfo, error) {
	path, ok := txt[TXTKeyPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyPath)
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: path %q", ErrInvalidTXTRecord, path)
	}

	ver, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if err := version.Check(ver); err != nil {
		return nil, err
	}

	return &ServerInfo{
		Path:    strings.TrimSuffix(path, "/"),
		Version: ver,
		Name:    txt[TXTKeyName],
	}, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		if !found {
			// Key without value (boolean flag)
			txt[k] = ""
			continue
		}
		txt[k] = v
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrMissingRequired)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}

package command_history

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

func encodeEntry(entry Entry, cipher Cipher) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}

	if cipher == nil {
		return data, nil
	}

	sealed, err := cipher.Seal(data)
	if err != nil {
		return nil, err
	}

	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)

	return out, nil
}

func decodeEntry(line []byte, cipher Cipher) (Entry, error) {
	var entry Entry

	data := line

	if cipher != nil {
		sealed := make([]byte, base64.StdEncoding.DecodedLen(len(line)))

		n, err := base64.StdEncoding.Decode(sealed, line)
		if err != nil {
			return entry, fmt.Errorf("failed to decode: %w", err)
		}

		data, err = cipher.Open(sealed[:n])
		if err != nil {
			return entry, err
		}
	}

	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, fmt.Errorf("failed to unmarshal: %w", err)
	}

	return entry, nil
}

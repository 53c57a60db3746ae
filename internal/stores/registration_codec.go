package stores

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	registrationRecordVersionV1 = 1

	// version(1) state(1) attempts(2) resends(2) createdAt(8) codeHash(32)
	registrationHeaderSize = 46
)

var errRegistrationRecordVersion = errors.New("invalid registration record version")

func encodeRegistrationRecord(record *RegistrationRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(registrationHeaderSize + 64 + len(record.Credential))

	buf.WriteByte(registrationRecordVersionV1)
	buf.WriteByte(byte(record.State))

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.Resends); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	for _, field := range []string{
		record.Email,
		record.Username,
		record.Phone,
		record.FullName,
		record.Role,
		record.Credential,
	} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeRegistrationRecord(data []byte) (*RegistrationRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != registrationRecordVersionV1 {
		return nil, errRegistrationRecordVersion
	}

	state, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	record := &RegistrationRecord{State: RegistrationState(state)}
	if record.State != StateActive && record.State != StateMaterializing {
		return nil, errors.New("invalid registration record state")
	}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.Resends); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	for _, dst := range []*string{
		&record.Email,
		&record.Username,
		&record.Phone,
		&record.FullName,
		&record.Role,
		&record.Credential,
	} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in registration record")
	}

	return record, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("registration record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

// Package rowdberr defines the exhaustive set of error kinds surfaced by the
// storage engine, each as a sentinel value comparable with errors.Is.
package rowdberr

import "fmt"

// Kind identifies one of the error cases enumerated in the storage engine's
// error handling design. Kind values are stable and safe to switch on.
type Kind string

const (
	KindInvalidSignature         Kind = "InvalidSignature"
	KindUnsupportedNewerVersion  Kind = "UnsupportedNewerVersion"
	KindSchemaAlreadyUpToDate    Kind = "SchemaAlreadyUpToDate"
	KindNoOpenDatabase           Kind = "NoOpenDatabase"
	KindDatabaseFileNotFound     Kind = "DatabaseFileNotFound"
	KindEmptyFilename            Kind = "EmptyFilename"
	KindStreamMustBeWritable     Kind = "StreamMustBeWritable"
	KindDatabaseReadOnlyMode     Kind = "DatabaseReadOnlyMode"
	KindInvalidTypeInSchema      Kind = "InvalidTypeInSchema"
	KindInvalidPrimaryKeyType    Kind = "InvalidPrimaryKeyType"
	KindDatabaseAlreadyHasPK     Kind = "DatabaseAlreadyHasPrimaryKey"
	KindPrimaryKeyCannotBeAdded  Kind = "PrimaryKeyCannotBeAdded"
	KindFieldNameAlreadyExists   Kind = "FieldNameAlreadyExists"
	KindCannotDeletePKField      Kind = "CannotDeletePrimaryKeyField"
	KindFieldListIsEmpty         Kind = "FieldListIsEmpty"
	KindFieldNameIsEmpty         Kind = "FieldNameIsEmpty"
	KindCantAlterWithDeleted     Kind = "CantAddOrRemoveFieldWithDeletedRecords"
	KindInvalidDataType          Kind = "InvalidDataType"
	KindErrorConvertingValue     Kind = "ErrorConvertingValueForField"
	KindNonArrayValue            Kind = "NonArrayValue"
	KindMissingPrimaryKey        Kind = "MissingPrimaryKey"
	KindDuplicatePrimaryKey      Kind = "DuplicatePrimaryKey"
	KindPrimaryKeyValueNotFound  Kind = "PrimaryKeyValueNotFound"
	KindMismatchedKeyFieldTypes  Kind = "MismatchedKeyFieldTypes"
	KindInvalidKeyFieldType      Kind = "InvalidKeyFieldType"
	KindInvalidFieldName         Kind = "InvalidFieldName"
	KindFieldSpecifiedTwice      Kind = "FieldSpecifiedTwice"
	KindIndexOutOfRange          Kind = "IndexOutOfRange"
	KindIteratorPastEndOfFile    Kind = "IteratorPastEndOfFile"
	KindDatabaseEmpty            Kind = "DatabaseEmpty"
	KindHashSetExpected          Kind = "HashSetExpected"
	KindNoCurrentTransaction     Kind = "NoCurrentTransaction"
	KindTransactionAlreadyOpen   Kind = "TransactionAlreadyOpen"
	KindInvalidFilterConstruct   Kind = "InvalidFilterConstruct"
	KindInvalidOrderByFieldName  Kind = "InvalidOrderByFieldName"
	KindCannotOrderByArrayField  Kind = "CannotOrderByOnArrayField"
	KindDbIsEncrypted            Kind = "DbIsEncrypted"
	KindNoEncryptor              Kind = "NoEncryptor"
	KindCantConvertTypeToGuid    Kind = "CantConvertTypeToGuid"
	KindGuidTypeMustBeGuidOrByte Kind = "GuidTypeMustBeGuidOrByteArray"
	KindInvalidMetaDataType      Kind = "InvalidMetaDataType"
	KindInvalidOperation         Kind = "InvalidOperation"
)

// DBError is the concrete error type returned by every package in this
// module. Compare against the package-level sentinels with errors.Is.
type DBError struct {
	Kind    Kind
	Message string
	Err     error // optional wrapped cause
}

func (e *DBError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DBError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, Sentinel) match any DBError with the same Kind,
// regardless of Message/Err, so callers can test error identity without
// string comparisons.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...interface{}) *DBError {
	return &DBError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *DBError {
	return &DBError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Sentinels usable directly with errors.Is(err, rowdberr.ErrDuplicatePrimaryKey).
var (
	ErrInvalidSignature         = &DBError{Kind: KindInvalidSignature}
	ErrUnsupportedNewerVersion  = &DBError{Kind: KindUnsupportedNewerVersion}
	ErrSchemaAlreadyUpToDate    = &DBError{Kind: KindSchemaAlreadyUpToDate}
	ErrNoOpenDatabase           = &DBError{Kind: KindNoOpenDatabase}
	ErrDatabaseFileNotFound     = &DBError{Kind: KindDatabaseFileNotFound}
	ErrEmptyFilename            = &DBError{Kind: KindEmptyFilename}
	ErrStreamMustBeWritable     = &DBError{Kind: KindStreamMustBeWritable}
	ErrDatabaseReadOnlyMode     = &DBError{Kind: KindDatabaseReadOnlyMode}
	ErrInvalidTypeInSchema      = &DBError{Kind: KindInvalidTypeInSchema}
	ErrInvalidPrimaryKeyType    = &DBError{Kind: KindInvalidPrimaryKeyType}
	ErrDatabaseAlreadyHasPK     = &DBError{Kind: KindDatabaseAlreadyHasPK}
	ErrPrimaryKeyCannotBeAdded  = &DBError{Kind: KindPrimaryKeyCannotBeAdded}
	ErrFieldNameAlreadyExists   = &DBError{Kind: KindFieldNameAlreadyExists}
	ErrCannotDeletePKField      = &DBError{Kind: KindCannotDeletePKField}
	ErrFieldListIsEmpty         = &DBError{Kind: KindFieldListIsEmpty}
	ErrFieldNameIsEmpty         = &DBError{Kind: KindFieldNameIsEmpty}
	ErrCantAlterWithDeleted     = &DBError{Kind: KindCantAlterWithDeleted}
	ErrInvalidDataType          = &DBError{Kind: KindInvalidDataType}
	ErrErrorConvertingValue     = &DBError{Kind: KindErrorConvertingValue}
	ErrNonArrayValue            = &DBError{Kind: KindNonArrayValue}
	ErrMissingPrimaryKey        = &DBError{Kind: KindMissingPrimaryKey}
	ErrDuplicatePrimaryKey      = &DBError{Kind: KindDuplicatePrimaryKey}
	ErrPrimaryKeyValueNotFound  = &DBError{Kind: KindPrimaryKeyValueNotFound}
	ErrMismatchedKeyFieldTypes  = &DBError{Kind: KindMismatchedKeyFieldTypes}
	ErrInvalidKeyFieldType      = &DBError{Kind: KindInvalidKeyFieldType}
	ErrInvalidFieldName         = &DBError{Kind: KindInvalidFieldName}
	ErrFieldSpecifiedTwice      = &DBError{Kind: KindFieldSpecifiedTwice}
	ErrIndexOutOfRange          = &DBError{Kind: KindIndexOutOfRange}
	ErrIteratorPastEndOfFile    = &DBError{Kind: KindIteratorPastEndOfFile}
	ErrDatabaseEmpty            = &DBError{Kind: KindDatabaseEmpty}
	ErrHashSetExpected          = &DBError{Kind: KindHashSetExpected}
	ErrNoCurrentTransaction     = &DBError{Kind: KindNoCurrentTransaction}
	ErrTransactionAlreadyOpen   = &DBError{Kind: KindTransactionAlreadyOpen}
	ErrInvalidFilterConstruct   = &DBError{Kind: KindInvalidFilterConstruct}
	ErrInvalidOrderByFieldName  = &DBError{Kind: KindInvalidOrderByFieldName}
	ErrCannotOrderByArrayField  = &DBError{Kind: KindCannotOrderByArrayField}
	ErrDbIsEncrypted            = &DBError{Kind: KindDbIsEncrypted}
	ErrNoEncryptor              = &DBError{Kind: KindNoEncryptor}
	ErrCantConvertTypeToGuid    = &DBError{Kind: KindCantConvertTypeToGuid}
	ErrGuidTypeMustBeGuidOrByte = &DBError{Kind: KindGuidTypeMustBeGuidOrByte}
	ErrInvalidMetaDataType      = &DBError{Kind: KindInvalidMetaDataType}
	ErrInvalidOperation         = &DBError{Kind: KindInvalidOperation}
)

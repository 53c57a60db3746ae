// Package dynamo stores registered accounts in a single DynamoDB table.
//
// Uniqueness is enforced with guard items written in the same transaction
// as the account: one per (tenant, email), one per (tenant, username) and
// one per (tenant, registration session). Every item is keyed by the
// string attribute "pk".
package dynamo

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"

	goSignup "github.com/MrEthical07/goSignup"
	"github.com/MrEthical07/goSignup/internal/awsconf"
)

const keyAttr = "pk"

// positions of the items inside the create transaction
const (
	itemAccount = iota
	itemEmail
	itemUsername
	itemSession
)

// API is the part of *dynamodb.Client the store uses.
type API interface {
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type Store struct {
	client    API
	tableName string
	now       func() time.Time
}

// account is the stored account item.
type account struct {
	PK             string `dynamodbav:"pk"`
	AccountID      string `dynamodbav:"account_id"`
	TenantID       string `dynamodbav:"tenant_id"`
	Email          string `dynamodbav:"email"`
	Username       string `dynamodbav:"username"`
	Phone          string `dynamodbav:"phone,omitempty"`
	FullName       string `dynamodbav:"full_name,omitempty"`
	Role           string `dynamodbav:"role"`
	CredentialHash string `dynamodbav:"credential_hash"`
	EmailVerified  bool   `dynamodbav:"is_email_verified"`
	SessionID      string `dynamodbav:"registration_session"`
	CreatedAt      string `dynamodbav:"created_at"`
}

// guard claims a unique value for an account.
type guard struct {
	PK        string `dynamodbav:"pk"`
	AccountID string `dynamodbav:"account_id"`
}

func New(client API, tableName string) *Store {
	return &Store{client: client, tableName: tableName, now: time.Now}
}

// NewFromOptions builds a Store with a DynamoDB client from the AWS default
// configuration chain.
func NewFromOptions(ctx context.Context, opts awsconf.Options, tableName string) (*Store, error) {
	awsCfg, err := awsconf.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := opts.EndpointOrNil(); endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
	return New(client, tableName), nil
}

func accountKey(tenantID, id string) string        { return "ACCOUNT#" + tenantID + "#" + id }
func emailKey(tenantID, email string) string       { return "EMAIL#" + tenantID + "#" + email }
func usernameKey(tenantID, username string) string { return "USERNAME#" + tenantID + "#" + username }
func sessionKey(tenantID, sessionID string) string { return "SESSION#" + tenantID + "#" + sessionID }

func newAccountID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// CreateAccount writes the account and its guard items in one transaction.
// A taken email or username is reported as goSignup.ErrAccountConflict. A
// taken session guard means this session already created its account,
// whose ID is returned.
func (s *Store) CreateAccount(ctx context.Context, f goSignup.AccountFields) (string, error) {
	id := newAccountID()

	item, err := attributevalue.MarshalMap(account{
		PK:             accountKey(f.TenantID, id),
		AccountID:      id,
		TenantID:       f.TenantID,
		Email:          f.Email,
		Username:       f.Username,
		Phone:          f.Phone,
		FullName:       f.FullName,
		Role:           f.Role,
		CredentialHash: f.CredentialHash,
		EmailVerified:  f.EmailVerified,
		SessionID:      f.SessionID,
		CreatedAt:      s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("marshal account: %w", err)
	}

	writes := []types.TransactWriteItem{s.putIfAbsent(item)}
	for _, pk := range []string{
		emailKey(f.TenantID, f.Email),
		usernameKey(f.TenantID, f.Username),
		sessionKey(f.TenantID, f.SessionID),
	} {
		g, err := attributevalue.MarshalMap(guard{PK: pk, AccountID: id})
		if err != nil {
			return "", fmt.Errorf("marshal guard: %w", err)
		}
		writes = append(writes, s.putIfAbsent(g))
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err == nil {
		return id, nil
	}

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		failed := conditionFailures(canceled)
		if failed[itemSession] {
			if existing, found, findErr := s.FindAccount(ctx, f); findErr == nil && found {
				return existing, nil
			}
		}
		switch {
		case failed[itemEmail]:
			return "", fmt.Errorf("%w: email", goSignup.ErrAccountConflict)
		case failed[itemUsername]:
			return "", fmt.Errorf("%w: username", goSignup.ErrAccountConflict)
		case len(failed) > 0:
			return "", goSignup.ErrAccountConflict
		}
	}
	return "", fmt.Errorf("dynamo transact: %w", err)
}

// FindAccount reads the session guard written by CreateAccount.
func (s *Store) FindAccount(ctx context.Context, f goSignup.AccountFields) (string, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(keyAttr, sessionKey(f.TenantID, f.SessionID)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("dynamo get: %w", err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	var g guard
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return "", false, err
	}
	return g.AccountID, g.AccountID != "", nil
}

func (s *Store) putIfAbsent(item map[string]types.AttributeValue) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:                aws.String(s.tableName),
			Item:                     item,
			ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
			ExpressionAttributeNames: map[string]string{"#pk": keyAttr},
		},
	}
}

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func conditionFailures(e *types.TransactionCanceledException) map[int]bool {
	failed := map[int]bool{}
	for i, reason := range e.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			failed[i] = true
		}
	}
	return failed
}

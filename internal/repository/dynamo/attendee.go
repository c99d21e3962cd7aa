// Package dynamo implements the attendee repository on DynamoDB.
//
// Items are keyed by attendee_id. Identity lookups go through the
// identity-index GSI on identity_key (lower(email)#name) and then filter on
// the exact email and name.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/eventpass/internal/domain"
)

// IdentityIndex is the GSI used by FindByIdentity.
const IdentityIndex = "identity-index"

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// item is the stored shape of an attendee.
type item struct {
	AttendeeID   string            `dynamodbav:"attendee_id"`
	IdentityKey  string            `dynamodbav:"identity_key"`
	Name         string            `dynamodbav:"name"`
	Email        string            `dynamodbav:"email"`
	TicketStatus string            `dynamodbav:"ticket_status"`
	EmailStatus  string            `dynamodbav:"email_status"`
	Fields       map[string]string `dynamodbav:"fields"`
	CreatedAt    string            `dynamodbav:"created_at"`
	UpdatedAt    string            `dynamodbav:"updated_at"`
}

func toItem(a *domain.Attendee) item {
	fields := a.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return item{
		AttendeeID:   a.ID,
		IdentityKey:  a.Identity().Key(),
		Name:         a.Name,
		Email:        a.Email,
		TicketStatus: string(a.TicketStatus),
		EmailStatus:  string(a.EmailStatus),
		Fields:       fields,
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (it item) attendee() domain.Attendee {
	a := domain.Attendee{
		ID:           it.AttendeeID,
		Name:         it.Name,
		Email:        it.Email,
		TicketStatus: domain.TicketStatus(it.TicketStatus),
		EmailStatus:  domain.EmailStatus(it.EmailStatus),
		Fields:       it.Fields,
	}
	if a.Fields == nil {
		a.Fields = map[string]string{}
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, it.CreatedAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, it.UpdatedAt)
	return a
}

// AttendeeRepo stores attendees in one DynamoDB table.
type AttendeeRepo struct {
	client API
	table  string
	now    func() time.Time
}

// NewAttendeeRepo wraps an existing client.
func NewAttendeeRepo(client API, table string) *AttendeeRepo {
	return &AttendeeRepo{client: client, table: table, now: time.Now}
}

// Open loads AWS credentials the default way (optionally from a shared
// profile) and verifies the table exists.
func Open(ctx context.Context, table, region, profile string) (*AttendeeRepo, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	r := NewAttendeeRepo(dynamodb.NewFromConfig(cfg), table)
	if err := r.Ping(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Ping checks that the table is reachable.
func (r *AttendeeRepo) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", r.table, err)
	}
	return nil
}

func (r *AttendeeRepo) FindByIdentity(ctx context.Context, email, name string) (*domain.Attendee, error) {
	key := domain.Identity{Email: email, Name: name}.Key()
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(IdentityIndex),
		KeyConditionExpression: aws.String("identity_key = :k"),
		FilterExpression:       aws.String("email = :e AND #n = :n"),
		ExpressionAttributeNames: map[string]string{
			"#n": "name",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: key},
			":e": &types.AttributeValueMemberS{Value: email},
			":n": &types.AttributeValueMemberS{Value: name},
		},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query identity: %w", err)
		}
		if len(page.Items) == 0 {
			continue
		}
		var it item
		if err := attributevalue.UnmarshalMap(page.Items[0], &it); err != nil {
			return nil, fmt.Errorf("unmarshaling attendee: %w", err)
		}
		a := it.attendee()
		return &a, nil
	}
	return nil, nil
}

func (r *AttendeeRepo) Insert(ctx context.Context, a *domain.Attendee) error {
	av, err := attributevalue.MarshalMap(toItem(a))
	if err != nil {
		return fmt.Errorf("marshaling attendee: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(attendee_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("insert attendee %s: %w", a.ID, domain.ErrDuplicateAttendee)
		}
		return fmt.Errorf("putting attendee: %w", err)
	}
	return nil
}

func (r *AttendeeRepo) UpdateField(ctx context.Context, attendeeID, field, value string) error {
	target := "fields.#f"
	if field == domain.FieldTicketStatus || field == domain.FieldEmailStatus {
		target = "#f"
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"attendee_id": &types.AttributeValueMemberS{Value: attendeeID},
		},
		UpdateExpression:    aws.String("SET " + target + " = :v, updated_at = :u"),
		ConditionExpression: aws.String("attribute_exists(attendee_id)"),
		ExpressionAttributeNames: map[string]string{
			"#f": field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
			":u": &types.AttributeValueMemberS{Value: r.now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("update attendee %s: %w", attendeeID, domain.ErrAttendeeNotFound)
		}
		return fmt.Errorf("update attendee %s: %w", field, err)
	}
	return nil
}

// List returns every attendee in scan order.
func (r *AttendeeRepo) List(ctx context.Context) ([]domain.Attendee, error) {
	return r.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(r.table)})
}

// ListEmailNotSent returns attendees whose email_status is not Sent.
func (r *AttendeeRepo) ListEmailNotSent(ctx context.Context) ([]domain.Attendee, error) {
	return r.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.table),
		FilterExpression: aws.String("email_status <> :sent"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sent": &types.AttributeValueMemberS{Value: string(domain.EmailSent)},
		},
	})
}

func (r *AttendeeRepo) scan(ctx context.Context, in *dynamodb.ScanInput) ([]domain.Attendee, error) {
	out := []domain.Attendee{}
	p := dynamodb.NewScanPaginator(r.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning attendees: %w", err)
		}
		var items []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshaling attendees: %w", err)
		}
		for _, it := range items {
			out = append(out, it.attendee())
		}
	}
	return out, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// entryTTL is how long a registration lives before DynamoDB expires it.
const entryTTL = 10 * time.Minute

// store is the subset of the DynamoDB client the handler needs.
type store interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

var (
	svc       store
	tableName string

	namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)
)

func init() {
	tableName = os.Getenv("TABLE_NAME")
	if tableName == "" {
		log.Println("TABLE_NAME env var is empty, defaulting to FlipRegistry")
		tableName = "FlipRegistry"
	}

	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	svc = dynamodb.NewFromConfig(cfg)
}

// RegistryItem maps a server name to the address it listens on.
type RegistryItem struct {
	Name      string `json:"name" dynamodbav:"name"`
	IP        string `json:"ip" dynamodbav:"ip"`
	Port      int    `json:"port" dynamodbav:"port"`
	Transport string `json:"transport,omitempty" dynamodbav:"transport,omitempty"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL
}

// Handler handles the API Gateway requests
func Handler(ctx context.Context, request events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log.Printf("Processing request %s %s", request.RequestContext.HTTP.Method, request.RequestContext.HTTP.Path)

	switch request.RequestContext.HTTP.Method {
	case "POST":
		return handleRegister(ctx, request.Body, request.RequestContext.HTTP.SourceIP)
	case "GET":
		// /lookup/{name}
		name := request.PathParameters["name"]
		if name == "" {
			return errorResponse(400, "Missing name parameter"), nil
		}
		return handleLookup(ctx, name)
	default:
		return errorResponse(405, "Method Not Allowed"), nil
	}
}

func handleRegister(ctx context.Context, body string, sourceIP string) (events.APIGatewayV2HTTPResponse, error) {
	var item RegistryItem
	if err := json.Unmarshal([]byte(body), &item); err != nil {
		return errorResponse(400, "Invalid JSON body"), nil
	}

	if !namePattern.MatchString(item.Name) {
		return errorResponse(400, "Invalid name"), nil
	}
	if item.Port < 1 || item.Port > 65535 {
		return errorResponse(400, "Invalid port"), nil
	}

	// Servers behind NAT leave the IP empty.
	if item.IP == "" {
		item.IP = sourceIP
	}
	item.ExpiresAt = time.Now().Add(entryTTL).Unix()

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		log.Printf("Failed to marshal item: %v", err)
		return errorResponse(500, "Internal Server Error"), nil
	}

	_, err = svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	})
	if err != nil {
		log.Printf("Failed to put item into DynamoDB: %v", err)
		return errorResponse(500, "Failed to save record"), nil
	}

	return events.APIGatewayV2HTTPResponse{
		StatusCode: 200,
		Body:       `{"message": "Registered successfully"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}, nil
}

func handleLookup(ctx context.Context, name string) (events.APIGatewayV2HTTPResponse, error) {
	out, err := svc.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		log.Printf("Failed to get item: %v", err)
		return errorResponse(500, "Failed to lookup name"), nil
	}

	if out.Item == nil {
		return errorResponse(404, "Name not found"), nil
	}

	var item RegistryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		log.Printf("Failed to unmarshal item: %v", err)
		return errorResponse(500, "Internal Server Error"), nil
	}

	// TTL deletion lags, so expired rows can still be read.
	if item.ExpiresAt != 0 && item.ExpiresAt < time.Now().Unix() {
		return errorResponse(404, "Name not found"), nil
	}

	responseBody, _ := json.Marshal(item)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: 200,
		Body:       string(responseBody),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}, nil
}

func errorResponse(statusCode int, message string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: statusCode,
		Body:       fmt.Sprintf(`{"error": "%s"}`, message),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	lambda.Start(Handler)
}

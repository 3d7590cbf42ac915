package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// memStore keeps items keyed by name.
type memStore struct {
	items map[string]map[string]types.AttributeValue
}

func (m *memStore) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	name := in.Item["name"].(*types.AttributeValueMemberS).Value
	m.items[name] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memStore) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	name := in.Key["name"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: m.items[name]}, nil
}

func useMemStore(t *testing.T) *memStore {
	t.Helper()
	m := &memStore{items: make(map[string]map[string]types.AttributeValue)}
	prev := svc
	svc = m
	t.Cleanup(func() { svc = prev })
	return m
}

func request(method, body, name string) events.APIGatewayV2HTTPRequest {
	var req events.APIGatewayV2HTTPRequest
	req.RequestContext.HTTP.Method = method
	req.RequestContext.HTTP.SourceIP = "203.0.113.9"
	req.Body = body
	if name != "" {
		req.PathParameters = map[string]string{"name": name}
	}
	return req
}

func TestRegistryItemJSON(t *testing.T) {
	item := RegistryItem{
		Name: "brave-otter",
		IP:   "127.0.0.1",
		Port: 9999,
	}

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Failed to marshal item: %v", err)
	}

	expected := `{"name":"brave-otter","ip":"127.0.0.1","port":9999,"expires_at":0}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, string(data))
	}
}

func TestRegisterAndLookup(t *testing.T) {
	useMemStore(t)
	ctx := context.Background()

	resp, _ := Handler(ctx, request("POST", `{"name":"brave-otter","port":9999,"transport":"quic"}`, ""))
	if resp.StatusCode != 200 {
		t.Fatalf("register: expected 200, got %d %s", resp.StatusCode, resp.Body)
	}

	resp, _ = Handler(ctx, request("GET", "", "brave-otter"))
	if resp.StatusCode != 200 {
		t.Fatalf("lookup: expected 200, got %d %s", resp.StatusCode, resp.Body)
	}
	var item RegistryItem
	if err := json.Unmarshal([]byte(resp.Body), &item); err != nil {
		t.Fatal(err)
	}
	if item.IP != "203.0.113.9" || item.Port != 9999 || item.Transport != "quic" {
		t.Errorf("Unexpected item: %+v", item)
	}
	if item.ExpiresAt <= time.Now().Unix() {
		t.Errorf("Expected a future expiry, got %d", item.ExpiresAt)
	}
}

func TestLookupExpired(t *testing.T) {
	m := useMemStore(t)
	av, err := attributevalue.MarshalMap(RegistryItem{Name: "old", IP: "10.0.0.1", Port: 2000, ExpiresAt: time.Now().Add(-time.Minute).Unix()})
	if err != nil {
		t.Fatal(err)
	}
	m.items["old"] = av

	resp, _ := Handler(context.Background(), request("GET", "", "old"))
	if resp.StatusCode != 404 {
		t.Errorf("Expected 404 for an expired entry, got %d", resp.StatusCode)
	}
}

func TestHandlerRejects(t *testing.T) {
	useMemStore(t)
	cases := []struct {
		name string
		req  events.APIGatewayV2HTTPRequest
		want int
	}{
		{"bad json", request("POST", "{", ""), 400},
		{"bad name", request("POST", `{"name":"Bad Name","port":9999}`, ""), 400},
		{"bad port", request("POST", `{"name":"ok","port":0}`, ""), 400},
		{"missing name", request("GET", "", ""), 400},
		{"unknown name", request("GET", "", "nobody"), 404},
		{"method", request("DELETE", "", "x"), 405},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := Handler(context.Background(), tc.req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tc.want {
				t.Errorf("Expected %d, got %d (%s)", tc.want, resp.StatusCode, resp.Body)
			}
		})
	}
}

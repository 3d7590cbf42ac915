package main

import (
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigatewayv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigatewayv2integrations"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

type RegistryStackProps struct {
	awscdk.StackProps
}

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)

	NewRegistryStack(app, "FlipRegistryStack", &RegistryStackProps{
		awscdk.StackProps{
			Env: env(),
		},
	})

	app.Synth(nil)
}

// NewRegistryStack deploys the server-name registry: a DynamoDB table with
// TTL, the registry Lambda (cmd/registry) and an HTTP API in front of it.
func NewRegistryStack(scope constructs.Construct, id string, props *RegistryStackProps) awscdk.Stack {
	var sprops awscdk.StackProps
	if props != nil {
		sprops = props.StackProps
	}
	stack := awscdk.NewStack(scope, &id, &sprops)

	// 1. DynamoDB Table
	table := awsdynamodb.NewTable(stack, jsii.String("FlipRegistry"), &awsdynamodb.TableProps{
		PartitionKey: &awsdynamodb.Attribute{
			Name: jsii.String("name"),
			Type: awsdynamodb.AttributeType_STRING,
		},
		TimeToLiveAttribute: jsii.String("expires_at"),
		BillingMode:         awsdynamodb.BillingMode_PAY_PER_REQUEST,
		RemovalPolicy:       awscdk.RemovalPolicy_DESTROY, // entries expire within minutes anyway
	})

	// 2. Lambda Function
	registryFunc := awslambda.NewFunction(stack, jsii.String("RegistryFunction"), &awslambda.FunctionProps{
		Runtime: awslambda.Runtime_PROVIDED_AL2(),
		Handler: jsii.String("bootstrap"),
		Code:    awslambda.Code_FromAsset(jsii.String("../bin/registry.zip"), nil),
		Environment: &map[string]*string{
			"TABLE_NAME": table.TableName(),
		},
	})

	table.GrantReadWriteData(registryFunc)

	// 3. API Gateway (HTTP API)
	integration := awsapigatewayv2integrations.NewHttpLambdaIntegration(
		jsii.String("RegistryIntegration"),
		registryFunc,
		&awsapigatewayv2integrations.HttpLambdaIntegrationProps{},
	)

	httpApi := awsapigatewayv2.NewHttpApi(stack, jsii.String("FlipApi"), &awsapigatewayv2.HttpApiProps{
		ApiName: jsii.String("FlipRegistryApi"),
	})

	httpApi.AddRoutes(&awsapigatewayv2.AddRoutesOptions{
		Path:        jsii.String("/register"),
		Methods:     &[]awsapigatewayv2.HttpMethod{awsapigatewayv2.HttpMethod_POST},
		Integration: integration,
	})

	httpApi.AddRoutes(&awsapigatewayv2.AddRoutesOptions{
		Path:        jsii.String("/lookup/{name}"),
		Methods:     &[]awsapigatewayv2.HttpMethod{awsapigatewayv2.HttpMethod_GET},
		Integration: integration,
	})

	// 4. Output the API Endpoint; set it with "flip config set registry_url <value>".
	awscdk.NewCfnOutput(stack, jsii.String("ApiEndpoint"), &awscdk.CfnOutputProps{
		Value: httpApi.ApiEndpoint(),
	})

	return stack
}

// env determines the AWS environment (account+region) in which our stack is to
// be deployed. For more information see: https://docs.aws.amazon.com/cdk/latest/guide/environments.html
func env() *awscdk.Environment {
	account := os.Getenv("CDK_DEFAULT_ACCOUNT")
	region := os.Getenv("CDK_DEFAULT_REGION")

	if account == "" {
		account = os.Getenv("CDK_DEPLOY_ACCOUNT") // Fallback
	}
	if region == "" {
		region = os.Getenv("CDK_DEPLOY_REGION") // Fallback
	}

	return &awscdk.Environment{
		Account: jsii.String(account),
		Region:  jsii.String(region),
	}
}

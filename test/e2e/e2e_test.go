// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrcode-workers/internal/common/camunda"
	"qrcode-workers/internal/common/config"
	"qrcode-workers/internal/common/logger"

	buildcontactpayload "qrcode-workers/internal/workers/contact/build-contact-payload"
	renderqrcode "qrcode-workers/internal/workers/qrcode/render-qr-code"
)

// These tests need a running Zeebe gateway; set ZEEBE_ADDRESS to enable them.
var zeebeClient *camunda.Client

func TestMain(m *testing.M) {
	address := os.Getenv("ZEEBE_ADDRESS")
	if address == "" {
		fmt.Println("ZEEBE_ADDRESS not set, skipping e2e tests")
		os.Exit(0)
	}

	var err error
	zeebeClient, err = camunda.NewClientWithConfig(camunda.ConfigFromApp(config.CamundaConfig{BrokerAddress: address}))
	if err != nil {
		panic(fmt.Sprintf("❌ Failed to connect to Zeebe: %v", err))
	}

	code := m.Run()

	zeebeClient.Close()
	os.Exit(code)
}

func TestContactCardProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log := logger.NewTestLogger(t)
	client := zeebeClient.GetClient()

	resp, err := zeebeClient.DeployResources(ctx, "../../configs/bpmn/contact-card.bpmn")
	require.NoError(t, err, "❌ BPMN deployment failed")
	require.NotEmpty(t, resp.GetDeployments())
	t.Log("✅ contact-card.bpmn deployed")

	build, err := buildcontactpayload.NewHandler(buildcontactpayload.HandlerOptions{
		CustomConfig: buildcontactpayload.DefaultConfig(),
		Logger:       log,
	})
	require.NoError(t, err)
	render, err := renderqrcode.NewHandler(renderqrcode.HandlerOptions{
		CustomConfig: renderqrcode.DefaultConfig(),
		Logger:       log,
	})
	require.NoError(t, err)

	wcfg := config.WorkerConfig{Enabled: true, MaxJobsActive: 2, Timeout: 30000}
	buildWorker := camunda.StartWorker(client, buildcontactpayload.TaskType, wcfg, build, log)
	defer buildWorker.Stop()
	renderWorker := camunda.StartWorker(client, renderqrcode.TaskType, wcfg, render, log)
	defer renderWorker.Stop()

	t.Log("🚀 Starting contact-card process instance...")

	cmd, err := client.NewCreateInstanceCommand().
		BPMNProcessId("contact-card").
		LatestVersion().
		VariablesFromMap(map[string]interface{}{
			"name":  "Ana",
			"phone": "+551199999999",
			"email": "ana@x.com",
			"color": "red",
		})
	require.NoError(t, err)

	raw, err := zeebeClient.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return cmd.WithResult().Send(ctx)
	}, "CreateInstanceWithResult")
	require.NoError(t, err, "❌ process instance did not complete")
	result := raw.(*pb.CreateProcessInstanceWithResultResponse)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.GetVariables()), &vars))

	assert.Equal(t,
		"BEGIN:VCARD\nVERSION:3.0\nFN:Ana\nTITLE:\nTEL;TYPE=voice,work,pref:+551199999999\nEMAIL:ana@x.com\nURL:\nEND:VCARD",
		vars["qrValue"])
	assert.Equal(t, "#FF0000", vars["qrColor"])
	assert.Equal(t, false, vars["hasPhoto"])

	doc, _ := vars["svgDocument"].(string)
	assert.True(t, strings.HasPrefix(doc, "<svg "), "❌ svgDocument missing")
	assert.Contains(t, doc, `xmlns="http://www.w3.org/2000/svg"`)

	t.Log("✅ contact-card process completed")
}

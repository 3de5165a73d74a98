package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestServiceResource(t *testing.T) {
	res := Service{Name: "zaymazone", Component: ComponentSalesWorker, Environment: "staging"}.resource()
	set := res.Set()

	name, ok := set.Value(semconv.ServiceNameKey)
	assert.True(t, ok)
	assert.Equal(t, "zaymazone", name.AsString())

	component, ok := set.Value(componentKey)
	assert.True(t, ok)
	assert.Equal(t, "sales-worker", component.AsString())

	env, ok := set.Value(semconv.DeploymentEnvironmentKey)
	assert.True(t, ok)
	assert.Equal(t, "staging", env.AsString())

	ns, _ := set.Value(semconv.ServiceNamespaceKey)
	assert.Equal(t, serviceNamespace, ns.AsString())
}

func TestServiceResource_NoEnvironment(t *testing.T) {
	res := Service{Name: "zaymazone", Component: ComponentAPI}.resource()
	_, ok := res.Set().Value(semconv.DeploymentEnvironmentKey)
	assert.False(t, ok)
}

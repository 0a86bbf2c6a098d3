package mcpcmder

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/papercomputeco/troubleshoot/pkg/config"
)

var _ = Describe("MCP Command", func() {
	var (
		log  *zap.Logger
		logs *observer.ObservedLogs
	)

	BeforeEach(func() {
		core, observed := observer.New(zap.WarnLevel)
		log = zap.New(core)
		logs = observed
	})

	It("warns with the credential variable when no key is configured", func() {
		Expect(newServer(config.Default(), "test", log)).NotTo(BeNil())

		entries := logs.All()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Level).To(Equal(zap.WarnLevel))
		Expect(entries[0].ContextMap()).To(HaveKeyWithValue("env", config.EnvAPIKey))
	})

	It("does not warn when a key is configured", func() {
		cfg := config.Default()
		cfg.APIKey = "sk-test"

		Expect(newServer(cfg, "test", log)).NotTo(BeNil())
		Expect(logs.All()).To(BeEmpty())
	})
})

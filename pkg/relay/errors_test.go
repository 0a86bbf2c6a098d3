package relay_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/troubleshoot/pkg/relay"
)

var _ = Describe("Error", func() {
	It("recovers the kind through wrapping", func() {
		err := fmt.Errorf("handling chat: %w", relay.InputError(errors.New("bad body")))

		Expect(relay.KindOf(err)).To(Equal(relay.KindInput))
		Expect(err.Error()).To(ContainSubstring("input error: bad body"))
	})

	It("has no kind for foreign errors", func() {
		Expect(relay.KindOf(errors.New("other"))).To(BeEmpty())
		Expect(relay.KindOf(nil)).To(BeEmpty())
	})

	It("unwraps to the cause", func() {
		cause := errors.New("cause")

		Expect(errors.Is(relay.InputError(cause), cause)).To(BeTrue())
	})
})

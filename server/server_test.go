package server

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	gomock "go.uber.org/mock/gomock"

	"github.com/hwdebug/rtlserver/agent"
)

var _ = Describe("Server.Run", func() {
	var (
		mockController *gomock.Controller
		link           *MockLink
	)

	BeforeEach(func() {
		mockController = gomock.NewController(GinkgoT())
		link = NewMockLink(mockController)
	})

	AfterEach(func() {
		mockController.Finish()
	})

	It("should answer a greeting it receives and cancel cleanly on context done", func() {
		_, ag := buildServer()
		srv := New(link, ag, nil)

		ctx, cancel := context.WithCancel(context.Background())

		gomock.InOrder(
			link.EXPECT().Poll(gomock.Any(), agent.PollTimeout).DoAndReturn(
				func(context.Context, time.Duration) bool { return true },
			),
			link.EXPECT().RecvPacket().Return(`{"type":"greeting","version":0}`, true),
			link.EXPECT().SendPacket(gomock.Any()).Do(func(string) { cancel() }),
			link.EXPECT().RecvPacket().Return("", false),
		)

		srv.Run(ctx)
	})

	It("should stop the loop when Poll reports an unrecoverable failure", func() {
		_, ag := buildServer()
		srv := New(link, ag, nil)

		link.EXPECT().Poll(gomock.Any(), agent.PollTimeout).Return(false)
		link.EXPECT().PollError().Return(nil)

		srv.Run(context.Background())
	})
})

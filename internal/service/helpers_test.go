package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"sipenduk/internal/repository"
)

func TestMain(m *testing.M) {
	passwordHashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// getTestLogger 获取测试日志记录器
func getTestLogger() *zap.Logger {
	return zap.NewNop()
}

// recordingPublisher 记录发布的领域事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var nikSeq atomic.Int64

// testNIK 生成 16 位数字 NIK
func testNIK() string {
	return fmt.Sprintf("3201%012d", nikSeq.Add(1))
}

func newTestStore() *repository.MemoryStore {
	return repository.NewMemoryStore()
}

// createTestResident 通过协调器创建一个 present 居民
func createTestResident(t *testing.T, st repository.Store, name, sex string) ResidentItem {
	t.Helper()
	svc := NewResidentService(st, nil, getTestLogger())
	resp, err := svc.CreateResident(context.Background(), CreateResidentRequest{
		ResidentInput: ResidentInput{NIK: testNIK(), FullName: name, Sex: sex},
	})
	require.NoError(t, err)
	return resp.Resident
}

// createTestFamilyCard 创建家庭卡（含户主）
func createTestFamilyCard(t *testing.T, st repository.Store, number, head string) *CreateFamilyCardResponse {
	t.Helper()
	svc := NewFamilyCardService(st, nil, getTestLogger())
	resp, err := svc.CreateFamilyCard(context.Background(), CreateFamilyCardRequest{
		CardNumber: number,
		Address:    "Jl. Merdeka 1",
		RT:         "001",
		RW:         "002",
		Hamlet:     "Krajan",
		HeadName:   head,
		HeadNIK:    testNIK(),
		HeadSex:    "male",
	})
	require.NoError(t, err)
	return resp
}

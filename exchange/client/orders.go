package client

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/betbot/gohyper/exchange/types"
)

// PlaceOrders 批量下单，orders 按 coin 名称描述；返回的 Statuses 与 orders 一一对应
func (s *Session) PlaceOrders(ctx context.Context, orders []types.OrderRequest, grouping types.Grouping, builder *types.BuilderInfo, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	dir, err := s.Assets()
	if err != nil {
		return nil, err
	}
	wires := make([]types.OrderWire, 0, len(orders))
	for i, o := range orders {
		w, err := o.ToWire(dir)
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		wires = append(wires, w)
	}
	return s.SubmitAction(ctx, types.NewBulkOrder(wires, grouping, builder), opts...)
}

// PlaceOrder 单笔下单
func (s *Session) PlaceOrder(ctx context.Context, order types.OrderRequest, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	return s.PlaceOrders(ctx, []types.OrderRequest{order}, types.GroupingNA, nil, opts...)
}

// Cancel 按 oid 撤单
func (s *Session) Cancel(ctx context.Context, coin string, oids []uint64, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	asset, err := s.asset(coin)
	if err != nil {
		return nil, err
	}
	cancels := make([]types.CancelWire, 0, len(oids))
	for _, oid := range oids {
		cancels = append(cancels, types.CancelWire{Asset: asset, Oid: oid})
	}
	return s.SubmitAction(ctx, types.NewBulkCancel(cancels...), opts...)
}

// CancelByCloid 按客户端订单 ID 撤单
func (s *Session) CancelByCloid(ctx context.Context, coin string, cloids []string, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	asset, err := s.asset(coin)
	if err != nil {
		return nil, err
	}
	cancels := make([]types.CancelByCloidWire, 0, len(cloids))
	for _, c := range cloids {
		cancels = append(cancels, types.CancelByCloidWire{Asset: asset, Cloid: c})
	}
	return s.SubmitAction(ctx, types.NewBulkCancelByCloid(cancels...), opts...)
}

// ModifyRequest 改单请求
type ModifyRequest struct {
	Oid   uint64
	Order types.OrderRequest
}

// Modify 修改单个订单
func (s *Session) Modify(ctx context.Context, oid uint64, order types.OrderRequest, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	dir, err := s.Assets()
	if err != nil {
		return nil, err
	}
	w, err := order.ToWire(dir)
	if err != nil {
		return nil, err
	}
	return s.SubmitAction(ctx, types.NewModifyOrder(oid, w), opts...)
}

// BatchModify 批量改单
func (s *Session) BatchModify(ctx context.Context, reqs []ModifyRequest, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	dir, err := s.Assets()
	if err != nil {
		return nil, err
	}
	modifies := make([]types.ModifyWire, 0, len(reqs))
	for i, r := range reqs {
		w, err := r.Order.ToWire(dir)
		if err != nil {
			return nil, fmt.Errorf("modifies[%d]: %w", i, err)
		}
		modifies = append(modifies, types.ModifyWire{Oid: r.Oid, Order: w})
	}
	return s.SubmitAction(ctx, types.NewBulkModify(modifies...), opts...)
}

// UpdateLeverage 调整杠杆
func (s *Session) UpdateLeverage(ctx context.Context, coin string, isCross bool, leverage uint32, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	asset, err := s.asset(coin)
	if err != nil {
		return nil, err
	}
	return s.SubmitAction(ctx, types.NewUpdateLeverage(asset, isCross, leverage), opts...)
}

// UpdateIsolatedMargin 增减逐仓保证金，amountUsd 为正表示增加
func (s *Session) UpdateIsolatedMargin(ctx context.Context, coin string, isBuy bool, amountUsd float64, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	asset, err := s.asset(coin)
	if err != nil {
		return nil, err
	}
	ntli := int64(math.Round(amountUsd * 1e6))
	return s.SubmitAction(ctx, types.NewUpdateIsolatedMargin(asset, isBuy, ntli), opts...)
}

// ReserveRequestWeight 购买额外请求权重
// 成功响应为 {"status":"ok","response":{"type":"default"}}，没有 statuses
func (s *Session) ReserveRequestWeight(ctx context.Context, weight uint64, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	return s.SubmitAction(ctx, types.NewReserveRequestWeight(weight), opts...)
}

// ScheduleCancel 设置定时全部撤单；at 为空表示取消已设置的定时
func (s *Session) ScheduleCancel(ctx context.Context, at *time.Time, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	var ms *uint64
	if at != nil {
		v := uint64(at.UnixMilli())
		ms = &v
	}
	return s.SubmitAction(ctx, types.NewScheduleCancel(ms), opts...)
}

// UsdSend 向其他地址转 USDC（用户签名动作，不走 vault）
func (s *Session) UsdSend(ctx context.Context, destination, amount string, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	action := types.NewUsdSend(s.cfg.Network, destination, amount, s.clock.Next())
	return s.SubmitAction(ctx, action, opts...)
}

// Withdraw 提现到 L1 地址（用户签名动作，不走 vault）
func (s *Session) Withdraw(ctx context.Context, destination, amount string, opts ...SubmitOption) (*types.ExchangeResponse, error) {
	action := types.NewWithdraw(s.cfg.Network, destination, amount, s.clock.Next())
	return s.SubmitAction(ctx, action, opts...)
}

func (s *Session) asset(coin string) (uint32, error) {
	dir, err := s.Assets()
	if err != nil {
		return 0, err
	}
	return dir.Asset(coin)
}

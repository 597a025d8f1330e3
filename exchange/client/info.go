package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/betbot/gohyper/exchange/types"
)

// Meta 查询默认 dex 的永续元数据；dex 非空时查询 builder dex
func (s *Session) Meta(ctx context.Context, dex string, opts ...SubmitOption) (*types.Meta, error) {
	payload := map[string]string{"type": "meta"}
	if dex != "" {
		payload["dex"] = dex
	}
	var meta types.Meta
	if err := s.Info(ctx, payload, &meta, opts...); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SpotMeta 查询现货元数据
func (s *Session) SpotMeta(ctx context.Context, opts ...SubmitOption) (*types.SpotMeta, error) {
	var meta types.SpotMeta
	if err := s.Info(ctx, map[string]string{"type": "spotMeta"}, &meta, opts...); err != nil {
		return nil, err
	}
	return &meta, nil
}

// PerpDexs 查询 builder dex 列表，第一项（默认 dex）为 nil
func (s *Session) PerpDexs(ctx context.Context, opts ...SubmitOption) ([]*types.PerpDex, error) {
	var dexs []*types.PerpDex
	if err := s.Info(ctx, map[string]string{"type": "perpDexs"}, &dexs, opts...); err != nil {
		return nil, err
	}
	return dexs, nil
}

// AllMids 查询全部中间价
func (s *Session) AllMids(ctx context.Context, opts ...SubmitOption) (map[string]string, error) {
	var mids map[string]string
	if err := s.Info(ctx, map[string]string{"type": "allMids"}, &mids, opts...); err != nil {
		return nil, err
	}
	return mids, nil
}

// L2Book 查询订单簿快照
func (s *Session) L2Book(ctx context.Context, coin string, opts ...SubmitOption) (*types.L2Book, error) {
	var book types.L2Book
	if err := s.Info(ctx, map[string]string{"type": "l2Book", "coin": coin}, &book, opts...); err != nil {
		return nil, err
	}
	return &book, nil
}

// OpenOrders 查询用户挂单，user 为空时查询会话地址
func (s *Session) OpenOrders(ctx context.Context, user string, opts ...SubmitOption) ([]types.BasicOrder, error) {
	if user == "" {
		user = s.Address().Hex()
	}
	var orders []types.BasicOrder
	if err := s.Info(ctx, map[string]string{"type": "openOrders", "user": user}, &orders, opts...); err != nil {
		return nil, err
	}
	return orders, nil
}

// ClearinghouseState 查询用户永续账户状态
func (s *Session) ClearinghouseState(ctx context.Context, user string, opts ...SubmitOption) (json.RawMessage, error) {
	if user == "" {
		user = s.Address().Hex()
	}
	var state json.RawMessage
	if err := s.Info(ctx, map[string]string{"type": "clearinghouseState", "user": user}, &state, opts...); err != nil {
		return nil, err
	}
	return state, nil
}

// LoadAssets 拉取永续、现货与 builder dex 元数据，重建 coin → 资产 ID 目录
func (s *Session) LoadAssets(ctx context.Context, opts ...SubmitOption) (*types.AssetDirectory, error) {
	dir := types.NewAssetDirectory()

	meta, err := s.Meta(ctx, "", opts...)
	if err != nil {
		return nil, fmt.Errorf("加载 meta 失败: %w", err)
	}
	dir.AddPerps(meta)

	spot, err := s.SpotMeta(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("加载 spotMeta 失败: %w", err)
	}
	dir.AddSpot(spot)

	dexs, err := s.PerpDexs(ctx, opts...)
	if err != nil {
		// 较早的节点没有 perpDexs，只记日志
		s.log.Warnf("加载 perpDexs 失败，跳过 builder 永续: %v", err)
	}
	for i, dex := range dexs {
		if i == 0 || dex == nil {
			continue
		}
		m, err := s.Meta(ctx, dex.Name, opts...)
		if err != nil {
			return nil, fmt.Errorf("加载 dex %s meta 失败: %w", dex.Name, err)
		}
		dir.AddBuilderPerps(i, m)
	}

	s.assetsMu.Lock()
	s.assets = dir
	s.assetsMu.Unlock()
	s.log.Infof("资产目录已加载: %d 个名称", dir.Len())
	return dir, nil
}

// Assets 当前资产目录
func (s *Session) Assets() (*types.AssetDirectory, error) {
	s.assetsMu.RLock()
	defer s.assetsMu.RUnlock()
	if s.assets == nil {
		return nil, errors.New("资产目录未加载，先调用 LoadAssets")
	}
	return s.assets, nil
}

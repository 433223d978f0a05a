package sqlinline

const QEnsureCredentialSchema = `--sql 2eff6378-a578-47a2-8ce5-497b86854360
create table if not exists provider_credentials (
  provider text primary key,
  token text not null,
  properties jsonb not null default '{}'::jsonb,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);
`

const QSelectCredential = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from provider_credentials
where provider = $1::text
  and token <> ''
limit 1;
`

const QUpsertCredential = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into provider_credentials (provider, token, properties, created_at, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
  token = excluded.token,
  properties = excluded.properties,
  updated_at = now();
`

const QDeleteCredential = `--sql 59167b2b-eafe-4ef7-abdc-d6837850adb0
delete from provider_credentials
where provider = $1::text;
`
